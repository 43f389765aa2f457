package capture_test

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/ribbon/internal/audio"
	"github.com/san-kum/ribbon/internal/capture"
	"github.com/san-kum/ribbon/internal/lineart"
)

type surface struct{ img *image.RGBA }

func (s surface) Snapshot() *image.RGBA { return s.img }

type fakeEncoder struct {
	mu        sync.Mutex
	began     bool
	withAudio bool
	frames    int
	lastTS    time.Duration
	samples   int
	ended     bool
	aborted   bool
	failAt    int
	first     []float32
}

func (f *fakeEncoder) Begin(w, h int, fps float64, withAudio bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.began, f.withAudio = true, withAudio
	return nil
}

func (f *fakeEncoder) EncodeFrame(img image.Image, ts time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt > 0 && f.frames+1 == f.failAt {
		return errors.New("rejected frame")
	}
	if ts < f.lastTS {
		return errors.New("timestamps went backwards")
	}
	f.frames++
	f.lastTS = ts
	return nil
}

func (f *fakeEncoder) EncodeAudio(samples []float32) error {
	f.mu.Lock()
	if f.first == nil && len(samples) > 0 {
		f.first = append([]float32(nil), samples...)
	}
	f.samples += len(samples)
	f.mu.Unlock()
	return nil
}

func (f *fakeEncoder) End(context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = true
	return []byte("container"), nil
}

func (f *fakeEncoder) Abort() error {
	f.mu.Lock()
	f.aborted = true
	f.mu.Unlock()
	return nil
}

func (f *fakeEncoder) MIME() string { return "video/webm" }

type playback struct {
	mu       sync.Mutex
	playing  bool
	rewound  bool
	position time.Duration
	duration time.Duration
	src      audio.Source
}

func (p *playback) Play() {
	p.mu.Lock()
	p.playing, p.rewound = true, false
	p.mu.Unlock()
}

func (p *playback) Pause() {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
}

func (p *playback) Rewind() {
	p.mu.Lock()
	p.rewound = true
	p.mu.Unlock()
}

func (p *playback) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *playback) Position() time.Duration   { return p.position }
func (p *playback) Duration() time.Duration   { return p.duration }
func (p *playback) AudioSource() audio.Source { return p.src }

func waitFor(s *capture.Session) (*capture.Artifact, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Wait(ctx)
}

var _ = Describe("Recording", func() {
	var (
		engine *capture.Engine
		enc    *fakeEncoder
	)

	BeforeEach(func() {
		engine = capture.NewEngine(surface{img: image.NewRGBA(image.Rect(0, 0, 16, 16))})
		enc = &fakeEncoder{}
	})

	It("records for the fallback duration when the source has none", func() {
		s, err := engine.BeginRecording(context.Background(), capture.RecordOptions{
			Encoder:          enc,
			FPS:              50,
			FallbackDuration: 120 * time.Millisecond,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Duration).To(Equal(120 * time.Millisecond))

		a, err := waitFor(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Kind).To(Equal(capture.KindRecording))
		Expect(a.MIME).To(Equal("video/webm"))
		Expect(a.Frames).To(BeNumerically(">", 0))
		Expect(a.Truncated).To(BeFalse())
		Expect(a.Width).To(Equal(16))
		Expect(enc.ended).To(BeTrue())
		Expect(enc.withAudio).To(BeFalse())
		Expect(engine.State()).To(Equal(capture.Idle))
	})

	It("plays the source, mixes its soundtrack and rewinds afterwards", func() {
		pcm := make([]float32, audio.SampleRate*audio.Channels)
		pb := &playback{duration: 150 * time.Millisecond, src: audio.NewPCM("clip", pcm)}
		router := audio.NewRouter(nil)

		var mu sync.Mutex
		var reports []float64
		s, err := engine.BeginRecording(context.Background(), capture.RecordOptions{
			Encoder:          enc,
			Playback:         pb,
			Router:           router,
			Effect:           true,
			FPS:              60,
			ProgressInterval: 20 * time.Millisecond,
			OnProgress: func(p float64) {
				mu.Lock()
				reports = append(reports, p)
				mu.Unlock()
			},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(pb.Playing()).To(BeTrue())

		_, err = waitFor(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(enc.withAudio).To(BeTrue())
		Expect(enc.samples).To(BeNumerically(">", 0))
		Expect(pb.Playing()).To(BeFalse())
		Expect(pb.rewound).To(BeTrue())
		Expect(router.Mode()).To(Equal(audio.Effected))
		Expect(router.Tap().Armed()).To(BeFalse())

		mu.Lock()
		defer mu.Unlock()
		Expect(reports).NotTo(BeEmpty())
		for _, p := range reports {
			Expect(p).To(And(BeNumerically(">=", 0), BeNumerically("<=", 1)))
		}
		Expect(reports[len(reports)-1]).To(Equal(1.0))
	})

	It("starts the soundtrack at the playback position", func() {
		ramp := make([]float32, audio.SampleRate*audio.Channels)
		for i := range ramp {
			ramp[i] = float32(i/audio.Channels) / audio.SampleRate
		}
		pb := &playback{position: 500 * time.Millisecond, duration: time.Second, src: audio.NewPCM("clip", ramp)}

		s, err := engine.BeginRecording(context.Background(), capture.RecordOptions{
			Encoder:  enc,
			Playback: pb,
			Router:   audio.NewRouter(nil),
			FPS:      100,
		})
		Expect(err).NotTo(HaveOccurred())
		Eventually(func() int {
			enc.mu.Lock()
			defer enc.mu.Unlock()
			return len(enc.first)
		}).Should(BeNumerically(">", 0))
		s.Stop()
		_, err = waitFor(s)
		Expect(err).NotTo(HaveOccurred())

		enc.mu.Lock()
		defer enc.mu.Unlock()
		Expect(enc.first[0]).To(BeNumerically("~", 0.5, 1e-3))
		Expect(enc.first[1]).To(Equal(enc.first[0]))
	})

	It("finalises a truncated artifact when stopped early", func() {
		s, err := engine.BeginRecording(context.Background(), capture.RecordOptions{
			Encoder:          enc,
			FPS:              100,
			FallbackDuration: time.Minute,
		})
		Expect(err).NotTo(HaveOccurred())
		Eventually(s.Frames).Should(BeNumerically(">", 0))
		s.Stop()

		a, err := waitFor(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Truncated).To(BeTrue())
		Expect(s.Progress()).To(BeNumerically("<", 1))
		Expect(s.State()).To(Equal(capture.Completed))
	})

	It("fails with an empty capture when no frame was sampled", func() {
		engine = capture.NewEngine(surface{})
		s, err := engine.BeginRecording(context.Background(), capture.RecordOptions{
			Encoder:          enc,
			FallbackDuration: time.Minute,
		})
		Expect(err).NotTo(HaveOccurred())
		time.Sleep(50 * time.Millisecond)
		s.Stop()

		_, err = waitFor(s)
		Expect(errors.Is(err, lineart.ErrEmptyCapture)).To(BeTrue())
		Expect(s.State()).To(Equal(capture.Failed))
		Expect(enc.began).To(BeFalse())
		Expect(engine.State()).To(Equal(capture.Idle))
	})

	It("aborts the encoder when a frame is rejected", func() {
		enc.failAt = 2
		s, err := engine.BeginRecording(context.Background(), capture.RecordOptions{
			Encoder:          enc,
			FPS:              100,
			FallbackDuration: time.Minute,
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = waitFor(s)
		Expect(errors.Is(err, lineart.ErrEncoding)).To(BeTrue())
		Expect(enc.aborted).To(BeTrue())
		Expect(enc.ended).To(BeFalse())
	})

	It("rejects a second session while one is active", func() {
		s, err := engine.BeginRecording(context.Background(), capture.RecordOptions{
			Encoder:          enc,
			FallbackDuration: time.Minute,
		})
		Expect(err).NotTo(HaveOccurred())
		defer func() {
			s.Stop()
			_, _ = waitFor(s)
		}()

		_, err = engine.BeginRecording(context.Background(), capture.RecordOptions{Encoder: &fakeEncoder{}})
		Expect(err).To(MatchError(capture.ErrBusy))
	})

	It("stops when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		s, err := engine.BeginRecording(ctx, capture.RecordOptions{
			Encoder:          enc,
			FPS:              100,
			FallbackDuration: time.Minute,
		})
		Expect(err).NotTo(HaveOccurred())
		Eventually(s.Frames).Should(BeNumerically(">", 0))
		cancel()

		a, err := waitFor(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Truncated).To(BeTrue())
		Expect(enc.ended).To(BeTrue())
	})
})
