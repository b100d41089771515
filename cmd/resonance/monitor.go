package main

import (
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	engine "github.com/resonance-box/engine-go"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fff"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8cf"))
	playStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6f6"))
	stopStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f66"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
)

const tempoStep = 5.0

// transportControl is the part of the engine the monitor drives.
type transportControl interface {
	Play()
	Stop()
	Playing() bool
	BPM() float64
	SetBPM(float64) error
	PPQ() int
	CurrentTicks() float64
	CurrentSeconds() float64
	ScheduledTicks() float64
}

type passMsg engine.PassEvent

type monitor struct {
	eng     transportControl
	events  <-chan engine.PassEvent
	meter   func() float32
	title   string
	outputs []string
	last    engine.PassEvent
	ended   bool
	status  string
}

func newMonitor(e transportControl, events <-chan engine.PassEvent, meter func() float32, file string, outputs []string) monitor {
	return monitor{
		eng:     e,
		events:  events,
		meter:   meter,
		title:   filepath.Base(file),
		outputs: outputs,
	}
}

func waitForPass(events <-chan engine.PassEvent) tea.Cmd {
	return func() tea.Msg {
		return passMsg(<-events)
	}
}

func (m monitor) Init() tea.Cmd {
	return waitForPass(m.events)
}

func (m monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case " ", "p":
			if m.eng.Playing() {
				m.eng.Stop()
				m.status = "stopped"
			} else {
				m.ended = false
				m.eng.Play()
				m.status = "playing from the top"
			}

		case "+", "=":
			m.setTempo(m.eng.BPM() + tempoStep)

		case "-", "_":
			m.setTempo(m.eng.BPM() - tempoStep)
		}

	case passMsg:
		m.last = engine.PassEvent(msg)
		if m.last.Ended && !m.ended {
			m.ended = true
			m.status = "end of song"
		}
		return m, waitForPass(m.events)
	}
	return m, nil
}

func (m *monitor) setTempo(bpm float64) {
	if err := m.eng.SetBPM(bpm); err != nil {
		m.status = err.Error()
		return
	}
	m.status = fmt.Sprintf("tempo %.0f", bpm)
}

// position formats ticks as 1-based bar.beat.tick in 4/4.
func position(ticks float64, ppq int) string {
	if ppq <= 0 || ticks < 0 {
		return "1.1.000"
	}
	t := int64(ticks)
	beat := t / int64(ppq)
	return fmt.Sprintf("%d.%d.%03d", beat/4+1, beat%4+1, t%int64(ppq))
}

func meterBar(level float32, width int) string {
	n := int(level * float32(width))
	n = max(0, min(n, width))
	return strings.Repeat("█", n) + dimStyle.Render(strings.Repeat("·", width-n))
}

func (m monitor) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("resonance") + "  " + dimStyle.Render(m.title) + "\n\n")

	state := stopStyle.Render("■ stopped")
	if m.eng.Playing() {
		state = playStyle.Render("▶ playing")
	}
	ticks := m.eng.CurrentTicks()
	fmt.Fprintf(&b, "%s   %s   %s\n",
		state,
		valueStyle.Render(position(ticks, m.eng.PPQ())),
		valueStyle.Render(fmt.Sprintf("%6.2fs", m.eng.CurrentSeconds())),
	)
	fmt.Fprintf(&b, "tempo %s  ppq %s\n",
		valueStyle.Render(fmt.Sprintf("%.1f", m.eng.BPM())),
		valueStyle.Render(fmt.Sprint(m.eng.PPQ())),
	)
	fmt.Fprintf(&b, "window %s  notes %s  scheduled to %s\n",
		valueStyle.Render(fmt.Sprintf("[%.1f, %.1f)", m.last.Start, m.last.End)),
		valueStyle.Render(fmt.Sprint(m.last.Events)),
		valueStyle.Render(fmt.Sprintf("%.1f", m.eng.ScheduledTicks())),
	)
	if m.meter != nil {
		b.WriteString("level  " + meterBar(m.meter(), 32) + "\n")
	}
	out := "none"
	if len(m.outputs) > 0 {
		out = strings.Join(m.outputs, ", ")
	}
	b.WriteString(dimStyle.Render("outputs: "+out) + "\n\n")
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status) + "\n")
	}
	b.WriteString(dimStyle.Render("space play/stop · +/- tempo · q quit") + "\n")
	return b.String()
}
