package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/ribbon/internal/audio"
	"github.com/san-kum/ribbon/internal/capture"
)

const (
	barWidth        = 40
	historyCapacity = 120
	refreshInterval = 100 * time.Millisecond
)

// Session is the part of a capture session the view polls.
type Session interface {
	Progress() float64
	State() capture.State
	Frames() int
	Elapsed() time.Duration
	Stop()
	Wait(ctx context.Context) (*capture.Artifact, error)
}

type tickMsg time.Time

type doneMsg struct {
	artifact *capture.Artifact
	err      error
}

// Model shows a running capture session with live audio levels until it
// finishes. Pressing q stops the session early; the partial result is kept.
type Model struct {
	title    string
	session  Session
	levels   func() audio.Levels
	progress float64
	state    capture.State
	frames   int
	elapsed  time.Duration
	current  audio.Levels
	history  []float64
	frame    int
	stopping bool

	done     bool
	artifact *capture.Artifact
	err      error
}

// NewModel builds the view. levels may be nil when nothing is metered.
func NewModel(title string, s Session, levels func() audio.Levels) Model {
	return Model{
		title:   title,
		session: s,
		levels:  levels,
		state:   capture.Capturing,
		history: make([]float64, 0, historyCapacity),
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) wait() tea.Cmd {
	return func() tea.Msg {
		a, err := m.session.Wait(context.Background())
		return doneMsg{artifact: a, err: err}
	}
}

func (m Model) Init() tea.Cmd { return tea.Batch(tick(), m.wait()) }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if !m.stopping {
				m.stopping = true
				m.session.Stop()
			}
		}
		return m, nil
	case tickMsg:
		m.poll()
		if m.done {
			return m, nil
		}
		return m, tick()
	case doneMsg:
		m.poll()
		m.done = true
		m.artifact, m.err = msg.artifact, msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) poll() {
	m.frame++
	m.progress = m.session.Progress()
	m.state = m.session.State()
	m.frames = m.session.Frames()
	m.elapsed = m.session.Elapsed()
	if m.levels == nil {
		return
	}
	m.current = m.levels()
	if len(m.history) == historyCapacity {
		m.history = append(m.history[:0], m.history[1:]...)
	}
	m.history = append(m.history, (m.current.Bass+m.current.Mid+m.current.High)/3)
}

func (m Model) status() string {
	switch {
	case m.done && m.err != nil:
		return StatusFailed.Render("failed")
	case m.done:
		return StatusDone.Render("done")
	case m.state == capture.Encoding:
		return StatusEncoding.Render(Spinner(m.frame) + " encoding")
	case m.stopping:
		return StatusEncoding.Render(Spinner(m.frame) + " stopping")
	}
	return StatusRecording.Render("● rec")
}

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(Title.Render(m.title) + "  " + m.status() + "\n\n")
	sb.WriteString(ProgressBar(m.progress, barWidth))
	sb.WriteString(fmt.Sprintf(" %s\n", MetricValue.Render(fmt.Sprintf("%3.0f%%", m.progress*100))))
	sb.WriteString(MetricLabel.Render("elapsed") + MetricValue.Render(m.elapsed.Truncate(10*time.Millisecond).String()) + "\n")
	sb.WriteString(MetricLabel.Render("frames") + MetricValue.Render(fmt.Sprintf("%d", m.frames)) + "\n")

	if m.levels != nil {
		sb.WriteString("\n")
		sb.WriteString(MetricLabel.Render("bass") + LevelBar(m.current.Bass, 24) + "\n")
		sb.WriteString(MetricLabel.Render("mid") + LevelBar(m.current.Mid, 24) + "\n")
		sb.WriteString(MetricLabel.Render("high") + LevelBar(m.current.High, 24) + "\n")
		sb.WriteString(MetricLabel.Render("") + Subtle.Render(Sparkline(m.history, barWidth)) + "\n")
	}

	if m.err != nil {
		sb.WriteString("\n" + StatusFailed.Render(m.err.Error()) + "\n")
	}
	if !m.done {
		sb.WriteString("\n" + KeyHint.Render("q: stop and keep what was captured"))
	}
	return Panel.Render(sb.String())
}

func (m Model) Result() (*capture.Artifact, error) { return m.artifact, m.err }

// Run shows the view until the session finishes and returns its result.
func Run(title string, s Session, levels func() audio.Levels) (*capture.Artifact, error) {
	final, err := tea.NewProgram(NewModel(title, s, levels)).Run()
	if err != nil {
		s.Stop()
		return s.Wait(context.Background())
	}
	return final.(Model).Result()
}
