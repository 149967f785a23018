// Package tui provides a terminal transport view for seqplay
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cbegin/seqplay-go"
)

var (
	amber     = lipgloss.Color("#FFB000")
	paleGray  = lipgloss.Color("#C0C0C0")
	darkGray  = lipgloss.Color("#333333")
	errorRed  = lipgloss.Color("#FF0000")
	noteGreen = lipgloss.Color("#39FF14")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(amber).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	posStyle   = lipgloss.NewStyle().Foreground(amber).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(paleGray)
	noteStyle  = lipgloss.NewStyle().Foreground(noteGreen)
	errorStyle = lipgloss.NewStyle().Foreground(errorRed).Bold(true)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(amber).
			Padding(1, 2)
)

const refreshInterval = 50 * time.Millisecond

// Transport is what the view drives.
type Transport interface {
	Status() seqplay.Status
	Play(ctx context.Context) error
	Pause()
	Step(ctx context.Context, unit seqplay.StepUnit, n int) error
	SeekBar(ctx context.Context, bar int) error
}

type keyMap struct {
	Toggle   key.Binding
	BeatBack key.Binding
	BeatFwd  key.Binding
	BarBack  key.Binding
	BarFwd   key.Binding
	PageBack key.Binding
	PageFwd  key.Binding
	Home     key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Toggle:   key.NewBinding(key.WithKeys(" ", "space", "p"), key.WithHelp("space", "play/pause")),
	BeatBack: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/→", "beat")),
	BeatFwd:  key.NewBinding(key.WithKeys("right", "l")),
	BarBack:  key.NewBinding(key.WithKeys("[", "shift+left"), key.WithHelp("[/]", "bar")),
	BarFwd:   key.NewBinding(key.WithKeys("]", "shift+right")),
	PageBack: key.NewBinding(key.WithKeys("pgup", "{"), key.WithHelp("pgup/pgdn", "page")),
	PageFwd:  key.NewBinding(key.WithKeys("pgdown", "}")),
	Home:     key.NewBinding(key.WithKeys("home", "0"), key.WithHelp("home", "start")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Model is the bubbletea model of the transport view.
type Model struct {
	title     string
	transport Transport
	status    seqplay.Status
	bar       progress.Model
	err       error
	width     int
}

type tickMsg time.Time

type actionDoneMsg struct{ err error }

func New(title string, t Transport) Model {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 48
	return Model{title: title, transport: t, status: t.Status(), bar: bar}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// do runs a transport action off the update loop; starting playback can
// wait for the audio device.
func (m Model) do(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: fn(context.Background())}
	}
}

func (m Model) step(unit seqplay.StepUnit, n int) tea.Cmd {
	return m.do(func(ctx context.Context) error { return m.transport.Step(ctx, unit, n) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 12; w > 10 {
			m.bar.Width = w
		}
		return m, nil

	case tickMsg:
		m.status = m.transport.Status()
		return m, tick()

	case actionDoneMsg:
		m.err = msg.err
		m.status = m.transport.Status()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.transport.Pause()
			return m, tea.Quit
		case key.Matches(msg, keys.Toggle):
			if m.status.Playing {
				m.transport.Pause()
				m.status = m.transport.Status()
				return m, nil
			}
			return m, m.do(m.transport.Play)
		case key.Matches(msg, keys.BeatBack):
			return m, m.step(seqplay.StepBeat, -1)
		case key.Matches(msg, keys.BeatFwd):
			return m, m.step(seqplay.StepBeat, 1)
		case key.Matches(msg, keys.BarBack):
			return m, m.step(seqplay.StepBar, -1)
		case key.Matches(msg, keys.BarFwd):
			return m, m.step(seqplay.StepBar, 1)
		case key.Matches(msg, keys.PageBack):
			return m, m.step(seqplay.StepPage, -1)
		case key.Matches(msg, keys.PageFwd):
			return m, m.step(seqplay.StepPage, 1)
		case key.Matches(msg, keys.Home):
			return m, m.do(func(ctx context.Context) error { return m.transport.SeekBar(ctx, 1) })
		}
	}
	return m, nil
}

func (m Model) View() string {
	st := m.status
	var s strings.Builder

	s.WriteString(titleStyle.Render(" " + m.title + " "))
	s.WriteString("\n")

	state := "■ stopped"
	if st.Playing {
		state = "▶ playing"
	}
	s.WriteString(posStyle.Render(fmt.Sprintf("Bar %d  Beat %d.%03d", st.Bar, st.Beat, st.SubBeat)))
	s.WriteString(labelStyle.Render(fmt.Sprintf("   %d/%d  %.1f bpm  %s  [%s]", st.Numerator, st.Denominator, st.BPM, state, st.Mode)))
	s.WriteString("\n\n")

	pct := 0.0
	if st.Duration > 0 {
		pct = st.Position / st.Duration
	}
	s.WriteString(m.bar.ViewAs(pct))
	s.WriteString("\n")
	s.WriteString(labelStyle.Render(fmt.Sprintf("%s / %s   page %d/%d   %d bars",
		clockTime(st.Position), clockTime(st.Duration), st.Page+1, st.PageCount, st.Bars)))
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("notes: "))
	if len(st.ActiveNotes) == 0 {
		s.WriteString(labelStyle.Render("-"))
	}
	for i, n := range st.ActiveNotes {
		if i > 0 {
			s.WriteString(" ")
		}
		s.WriteString(noteStyle.Render(fmt.Sprintf("%d:%s", n.Channel+1, noteName(n.Pitch))))
	}
	if m.err != nil {
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render("✗ " + m.err.Error()))
	}

	out := boxStyle.Render(s.String())
	help := helpStyle.Render("space: play/pause • ←/→: beat • [/]: bar • pgup/pgdn: page • home: start • q: quit")
	return out + "\n" + help
}

var pitchNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func noteName(pitch int) string {
	if pitch < 0 {
		return fmt.Sprint(pitch)
	}
	return fmt.Sprintf("%s%d", pitchNames[pitch%12], pitch/12-1)
}

func clockTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d.%d", total/60, total%60, int((seconds-float64(total))*10))
}

// Run starts the TUI application
func Run(title string, t Transport) error {
	p := tea.NewProgram(New(title, t), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
