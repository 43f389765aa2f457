package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Speakers plays samples on the default output device using a blocking
// portaudio stream.
type Speakers struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []float32
	fill   int
}

func OpenSpeakers() (*Speakers, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	s := &Speakers{buf: make([]float32, BufferSize*Channels)}
	stream, err := portaudio.OpenDefaultStream(0, Channels, SampleRate, BufferSize, &s.buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start output stream: %w", err)
	}
	s.stream = stream
	return s, nil
}

func (s *Speakers) Write(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(samples) > 0 {
		n := copy(s.buf[s.fill:], samples)
		s.fill += n
		samples = samples[n:]
		if s.fill == len(s.buf) {
			if err := s.stream.Write(); err != nil {
				return fmt.Errorf("write output stream: %w", err)
			}
			s.fill = 0
		}
	}
	return nil
}

func (s *Speakers) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	s.stream.Stop()
	err := s.stream.Close()
	s.stream = nil
	portaudio.Terminate()
	return err
}
