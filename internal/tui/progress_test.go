package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/ribbon/internal/audio"
	"github.com/san-kum/ribbon/internal/capture"
)

type fakeSession struct {
	progress float64
	state    capture.State
	frames   int
	stopped  int
}

func (f *fakeSession) Progress() float64 { return f.progress }
func (f *fakeSession) State() capture.State { return f.state }
func (f *fakeSession) Frames() int { return f.frames }
func (f *fakeSession) Elapsed() time.Duration { return time.Duration(f.progress * float64(time.Second)) }
func (f *fakeSession) Stop() { f.stopped++ }
func (f *fakeSession) Wait(context.Context) (*capture.Artifact, error) {
	return &capture.Artifact{Frames: f.frames}, nil
}

func TestModelPollsSession(t *testing.T) {
	s := &fakeSession{progress: 0.5, state: capture.Capturing, frames: 12}
	m := NewModel("record", s, func() audio.Levels { return audio.Levels{Bass: 0.3, Mid: 0.6, High: 0.9} })

	next, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("expected another tick")
	}
	got := next.(Model)
	if got.frames != 12 || got.progress != 0.5 {
		t.Errorf("poll mismatch: frames=%d progress=%g", got.frames, got.progress)
	}
	if len(got.history) != 1 {
		t.Errorf("expected one level sample, got %d", len(got.history))
	}
	if !strings.Contains(got.View(), "50%") {
		t.Errorf("view missing progress:\n%s", got.View())
	}
}

func TestModelStopOnce(t *testing.T) {
	s := &fakeSession{}
	var m tea.Model = NewModel("gif", s, nil)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if s.stopped != 1 {
		t.Errorf("expected one Stop, got %d", s.stopped)
	}
	if !strings.Contains(m.View(), "stopping") {
		t.Errorf("view should say stopping:\n%s", m.View())
	}
}

func TestModelDone(t *testing.T) {
	s := &fakeSession{progress: 1, state: capture.Failed}
	m := NewModel("record", s, nil)

	next, cmd := m.Update(doneMsg{err: errors.New("boom")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	a, err := next.(Model).Result()
	if a != nil || err == nil {
		t.Errorf("expected error result, got %v %v", a, err)
	}
	if !strings.Contains(next.View(), "boom") {
		t.Error("view should show the error")
	}
}

func TestHistoryBounded(t *testing.T) {
	s := &fakeSession{}
	m := NewModel("record", s, func() audio.Levels { return audio.Levels{Mid: 1} })
	for i := 0; i < historyCapacity+10; i++ {
		m.poll()
	}
	if len(m.history) != historyCapacity {
		t.Errorf("expected %d samples, got %d", historyCapacity, len(m.history))
	}
}

func TestBars(t *testing.T) {
	tests := []struct {
		fraction float64
		filled   int
	}{
		{-1, 0},
		{0, 0},
		{0.5, 5},
		{1, 10},
		{2, 10},
	}
	for _, tt := range tests {
		if got := clampCells(tt.fraction, 10); got != tt.filled {
			t.Errorf("clampCells(%g) = %d, want %d", tt.fraction, got, tt.filled)
		}
	}
	if got := []rune(Sparkline([]float64{0, 1}, 10)); len(got) != 2 || got[0] != '▁' || got[1] != '█' {
		t.Errorf("unexpected sparkline %q", string(got))
	}
}

func TestDelayChart(t *testing.T) {
	out := DelayChart([]time.Duration{50 * time.Millisecond, 60 * time.Millisecond, 100 * time.Millisecond}, "delays (ms)")
	if !strings.Contains(out, "delays (ms)") {
		t.Errorf("chart missing caption:\n%s", out)
	}
	if !strings.Contains(DelayChart(nil, ""), "no frame delays") {
		t.Error("empty chart should say so")
	}
}
