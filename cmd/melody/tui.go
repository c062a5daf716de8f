package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/leandrodaf/melody/sdk/contracts"
	"github.com/leandrodaf/melody/sdk/melody"
	"github.com/leandrodaf/melody/sdk/pitch"
	"github.com/leandrodaf/melody/sdk/sequence"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fff"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#aaa"))
	activeStyle = lipgloss.NewStyle().Reverse(true).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f55"))
)

const (
	tempoStep  = 5
	volumeStep = 0.05
	pollEvery  = 100 * time.Millisecond
	barWidth   = 40
)

var octave = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

type noteMsg struct{ note *pitch.Pitch }
type tickMsg time.Time

// forwardNotes adapts the observer to a channel without ever blocking the
// scheduler; a full channel drops the update.
func forwardNotes(ch chan<- noteMsg, log contracts.Logger) contracts.NoteObserver {
	return func(p *pitch.Pitch) {
		select {
		case ch <- noteMsg{note: p}:
		default:
			log.Debug("note update dropped, ui is behind")
		}
	}
}

func listenForNotes(ch <-chan noteMsg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type model struct {
	player  *melody.Session
	seq     sequence.NoteSequence
	notes   <-chan noteMsg
	current *pitch.Pitch
	state   contracts.TransportState
	err     error
}

func newModel(player *melody.Session, seq sequence.NoteSequence, notes <-chan noteMsg) model {
	return model{player: player, seq: seq, notes: notes}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(listenForNotes(m.notes), tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.err = nil
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit

		case " ", "p":
			if m.player.IsPlaying() {
				m.err = m.player.Pause()
			} else {
				m.err = m.player.Play()
			}

		case "s":
			m.err = m.player.Stop()

		case "+", "=":
			m.err = m.player.SetTempo(m.player.Tempo() + tempoStep)

		case "-", "_":
			if t := m.player.Tempo() - tempoStep; t > 0 {
				m.err = m.player.SetTempo(t)
			}

		case "up", "k":
			m.err = m.player.SetVolume(math.Min(1, m.player.Volume()+volumeStep))

		case "down", "j":
			m.err = m.player.SetVolume(math.Max(0, m.player.Volume()-volumeStep))
		}
		m.state = m.player.State()

	case noteMsg:
		m.current = msg.note
		return m, listenForNotes(m.notes)

	case tickMsg:
		// The engine stops on its own at the end; mirror that here.
		state := m.player.State()
		if m.state == contracts.Playing && state != contracts.Playing {
			m.current = nil
		}
		m.state = state
		return m, tick()
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("melody"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d notes", len(m.seq.Notes))))
	b.WriteString("\n\n")

	b.WriteString(m.keyboard())
	b.WriteString("\n\n")

	now := "-"
	if m.current != nil {
		now = fmt.Sprintf("%s  %.2f Hz", m.current, m.current.Frequency())
	}
	b.WriteString(fmt.Sprintf("  %s\n\n", titleStyle.Render(now)))

	b.WriteString("  " + m.progress() + "\n\n")

	b.WriteString(statusStyle.Render(fmt.Sprintf("  %-8s  tempo %3d bpm  volume %3.0f%%",
		m.state, m.player.Tempo(), m.player.Volume()*100)))
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errStyle.Render("  " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(keyStyle.Render("  space play/pause  s stop  +/- tempo  up/down volume  q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m model) keyboard() string {
	var active string
	if m.current != nil {
		s := m.current.Sharp()
		active = string(s.Letter()) + s.Accidental().String()
	}
	cells := make([]string, len(octave))
	for i, name := range octave {
		cell := fmt.Sprintf(" %-2s", name)
		if name == active {
			cells[i] = activeStyle.Render(cell)
		} else if strings.HasSuffix(name, "#") {
			cells[i] = dimStyle.Render(cell)
		} else {
			cells[i] = keyStyle.Render(cell)
		}
	}
	return " " + strings.Join(cells, "")
}

func (m model) progress() string {
	length := m.player.Length()
	if length <= 0 {
		return dimStyle.Render(strings.Repeat("·", barWidth))
	}
	pos := m.player.Position()
	filled := int(float64(barWidth) * float64(pos) / float64(length))
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + dimStyle.Render(strings.Repeat("·", barWidth-filled))
	return fmt.Sprintf("%s %s / %s", bar,
		pos.Round(100*time.Millisecond), length.Round(100*time.Millisecond))
}
