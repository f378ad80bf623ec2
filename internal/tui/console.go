// Package tui is the interactive terminal console for the tuner.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fmradio/internal/engine"
	"fmradio/internal/event"
	"fmradio/internal/station"
	"fmradio/internal/tuner"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#777777"))
)

// logLines is how many recent events the tuner screen keeps.
const logLines = 8

// ScreenType defines which screen is currently active
type ScreenType int

const (
	TunerScreen ScreenType = iota
	StationScreen
)

// Controller is the part of the engine the console drives.
type Controller interface {
	Snapshot() engine.Snapshot
	PowerUp(f tuner.Frequency) error
	PowerDown() error
	Tune(f tuner.Frequency) error
	Seek(up bool) error
	Scan() error
	StopScan()
	SetMute(mute bool) error
	SetRDS(on bool) error
	SetSpeaker(on bool) error
	StartRecording() error
	StopRecording() error
	SaveRecording(name string) error
}

var _ Controller = (*engine.Engine)(nil)

type keyMap struct {
	Quit, Screen, TuneUp, TuneDown, SeekUp, SeekDown, Scan, StopScan,
	Power, Mute, RDS, Speaker, Record key.Binding
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c")),
	Screen:   key.NewBinding(key.WithKeys("tab")),
	TuneUp:   key.NewBinding(key.WithKeys("up", "k")),
	TuneDown: key.NewBinding(key.WithKeys("down", "j")),
	SeekUp:   key.NewBinding(key.WithKeys("right", "l")),
	SeekDown: key.NewBinding(key.WithKeys("left", "h")),
	Scan:     key.NewBinding(key.WithKeys("s")),
	StopScan: key.NewBinding(key.WithKeys("x", "esc")),
	Power:    key.NewBinding(key.WithKeys("p")),
	Mute:     key.NewBinding(key.WithKeys("m")),
	RDS:      key.NewBinding(key.WithKeys("r")),
	Speaker:  key.NewBinding(key.WithKeys("o")),
	Record:   key.NewBinding(key.WithKeys("R")),
}

type eventMsg struct{ ev event.Event }

type errMsg struct{ err error }

// ConsoleModel is the Bubble Tea model for the tuner console.
type ConsoleModel struct {
	ctl      Controller
	band     tuner.Band
	events   <-chan event.Event
	now      func() time.Time
	viewport viewport.Model
	ready    bool
	err      error
	screen   ScreenType

	ps, rt   string
	stations []station.Station
	log      []string
	selected int
}

// NewConsoleModel builds a console over ctl. Events arrive on events, which
// the caller feeds from the engine bus.
func NewConsoleModel(ctl Controller, band tuner.Band, stations []station.Station, events <-chan event.Event) ConsoleModel {
	return ConsoleModel{
		ctl:      ctl,
		band:     band,
		events:   events,
		now:      time.Now,
		stations: stations,
		screen:   TunerScreen,
	}
}

// Init starts listening for engine events.
func (m ConsoleModel) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m ConsoleModel) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch := m.events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg{ev}
	}
}

func (m ConsoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case eventMsg:
		m.apply(msg.ev)
		cmds = append(cmds, m.waitForEvent())

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
		if err := m.handleKey(msg); err != nil {
			m.err = err
		}
	}

	if m.ready {
		m.viewport.SetContent(m.render())
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *ConsoleModel) handleKey(msg tea.KeyMsg) error {
	snap := m.ctl.Snapshot()
	if key.Matches(msg, keys.Screen) {
		if m.screen == TunerScreen {
			m.screen = StationScreen
		} else {
			m.screen = TunerScreen
		}
		return nil
	}

	if m.screen == StationScreen {
		switch {
		case key.Matches(msg, keys.TuneUp):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, keys.TuneDown):
			if m.selected < len(m.stations)-1 {
				m.selected++
			}
		case msg.Type == tea.KeyEnter:
			if len(m.stations) > 0 {
				return m.ctl.Tune(m.stations[m.selected].Frequency)
			}
		}
		return nil
	}

	switch {
	case key.Matches(msg, keys.TuneUp):
		return m.ctl.Tune(m.band.Next(m.current(snap), true))
	case key.Matches(msg, keys.TuneDown):
		return m.ctl.Tune(m.band.Next(m.current(snap), false))
	case key.Matches(msg, keys.SeekUp):
		return m.ctl.Seek(true)
	case key.Matches(msg, keys.SeekDown):
		return m.ctl.Seek(false)
	case key.Matches(msg, keys.Scan):
		return m.ctl.Scan()
	case key.Matches(msg, keys.StopScan):
		m.ctl.StopScan()
	case key.Matches(msg, keys.Power):
		if snap.Power == event.PoweredUp {
			return m.ctl.PowerDown()
		}
		return m.ctl.PowerUp(snap.Frequency)
	case key.Matches(msg, keys.Mute):
		return m.ctl.SetMute(!snap.Muted)
	case key.Matches(msg, keys.RDS):
		return m.ctl.SetRDS(!snap.RDS)
	case key.Matches(msg, keys.Speaker):
		return m.ctl.SetSpeaker(!snap.Speaker)
	case key.Matches(msg, keys.Record):
		if snap.Recorder == event.RecorderRecording {
			if err := m.ctl.StopRecording(); err != nil {
				return err
			}
			return m.ctl.SaveRecording(m.now().Format("FM_20060102_150405"))
		}
		return m.ctl.StartRecording()
	}
	return nil
}

// current falls back to the band edge before the first tune.
func (m ConsoleModel) current(snap engine.Snapshot) tuner.Frequency {
	if m.band.Contains(snap.Frequency) {
		return snap.Frequency
	}
	return m.band.Low
}

func (m *ConsoleModel) apply(ev event.Event) {
	switch ev := ev.(type) {
	case event.TuneFinished, event.SeekFinished:
		m.ps, m.rt = "", ""
	case event.ProgramServiceChanged:
		m.ps = ev.ProgramService
	case event.RadioTextChanged:
		m.rt = ev.RadioText
	case event.StationsChanged:
		m.stations = ev.Stations
		if m.selected >= len(m.stations) {
			m.selected = 0
		}
	case event.RecorderError:
		m.err = fmt.Errorf("recorder: %s", ev.Kind)
	}
	m.log = append(m.log, fmt.Sprintf("%s %s", m.now().Format("15:04:05"), ev.Name()))
	if len(m.log) > logLines {
		m.log = m.log[len(m.log)-logLines:]
	}
}

// View renders the UI
func (m ConsoleModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	if m.screen == TunerScreen {
		title = titleStyle.Render("FM Tuner")
		help = infoStyle.Render("↑/↓: Tune • ←/→: Seek • s: Scan • p: Power • m: Mute • R: Record • Tab: Stations • q: Quit")
	} else {
		title = titleStyle.Render("Stations")
		help = infoStyle.Render("↑/↓: Select • Enter: Tune • Tab: Tuner • q: Quit")
	}
	if m.err != nil {
		help = fmt.Sprintf("Error: %v\n%s", m.err, help)
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m ConsoleModel) render() string {
	if m.screen == StationScreen {
		return m.renderStations()
	}
	return m.renderTuner()
}

func (m ConsoleModel) renderTuner() string {
	var sb strings.Builder
	snap := m.ctl.Snapshot()

	freq := "---.-"
	if snap.Frequency != tuner.Invalid {
		freq = snap.Frequency.String()
	}
	sb.WriteString(highlightStyle.Render(fmt.Sprintf("%s MHz", freq)))
	if m.ps != "" {
		sb.WriteString("  " + highlightStyle.Render(m.ps))
	}
	sb.WriteString("\n")
	if m.rt != "" {
		sb.WriteString(m.rt + "\n")
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Power: %s  Focus: %s  Route: %s\n", snap.Power, snap.Focus, snap.Route)
	fmt.Fprintf(&sb, "Mute: %s  RDS: %s  Speaker: %s  Antenna: %s\n",
		onOff(snap.Muted), onOff(snap.RDS), onOff(snap.Speaker), snap.Antenna)
	switch {
	case snap.Scanning:
		sb.WriteString(highlightStyle.Render("Scanning...") + "\n")
	case snap.Seeking:
		sb.WriteString(highlightStyle.Render("Seeking...") + "\n")
	}
	fmt.Fprintf(&sb, "Recorder: %s\n\n", snap.Recorder)

	for _, line := range m.log {
		sb.WriteString(dimStyle.Render(line) + "\n")
	}
	return sb.String()
}

func (m ConsoleModel) renderStations() string {
	if len(m.stations) == 0 {
		return "No stations. Press Tab then s to scan."
	}
	var sb strings.Builder
	for i, st := range m.stations {
		line := fmt.Sprintf("%6s MHz", st.Frequency)
		if name := st.ProgramService; name != "" {
			line += "  " + name
		} else if st.Name != "" {
			line += "  " + st.Name
		}
		if st.Favorite {
			line += " *"
		}
		if i == m.selected {
			line = highlightStyle.Render("▶ " + line)
		} else {
			line = "  " + line
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Run launches the console and blocks until the user quits. Engine events
// are forwarded from bus for as long as the console runs.
func Run(e *engine.Engine, band tuner.Band, stations []station.Station) error {
	events := make(chan event.Event, 64)
	// listeners run on the engine worker and must not block
	h := e.Bus().Subscribe(func(ev event.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer e.Bus().Unsubscribe(h)

	p := tea.NewProgram(
		NewConsoleModel(e, band, stations, events),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
