package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"fmradio/internal/engine"
	"fmradio/internal/event"
	"fmradio/internal/station"
	"fmradio/internal/tuner"
)

type fakeController struct {
	snap  engine.Snapshot
	calls []string
	err   error
}

func (f *fakeController) record(format string, args ...any) error {
	f.calls = append(f.calls, fmtCall(format, args...))
	return f.err
}

func fmtCall(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	parts := []string{format}
	for _, a := range args {
		switch v := a.(type) {
		case tuner.Frequency:
			parts = append(parts, v.String())
		case bool:
			parts = append(parts, onOff(v))
		case string:
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func (f *fakeController) Snapshot() engine.Snapshot       { return f.snap }
func (f *fakeController) PowerUp(fr tuner.Frequency) error { return f.record("power_up", fr) }
func (f *fakeController) PowerDown() error                 { return f.record("power_down") }
func (f *fakeController) Tune(fr tuner.Frequency) error    { return f.record("tune", fr) }
func (f *fakeController) Seek(up bool) error               { return f.record("seek", up) }
func (f *fakeController) Scan() error                      { return f.record("scan") }
func (f *fakeController) StopScan()                        { f.record("stop_scan") }
func (f *fakeController) SetMute(m bool) error             { return f.record("mute", m) }
func (f *fakeController) SetRDS(on bool) error             { return f.record("rds", on) }
func (f *fakeController) SetSpeaker(on bool) error         { return f.record("speaker", on) }
func (f *fakeController) StartRecording() error            { return f.record("start_recording") }
func (f *fakeController) StopRecording() error             { return f.record("stop_recording") }
func (f *fakeController) SaveRecording(n string) error     { return f.record("save", n) }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func newTestModel(ctl *fakeController) ConsoleModel {
	m := NewConsoleModel(ctl, tuner.DefaultBand, nil, nil)
	m.now = func() time.Time { return time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC) }
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(ConsoleModel)
}

func press(t *testing.T, m ConsoleModel, msgs ...tea.Msg) ConsoleModel {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(ConsoleModel)
	}
	return m
}

func TestConsole_TunerKeys(t *testing.T) {
	t.Parallel()
	powered := engine.Snapshot{Power: event.PoweredUp, Frequency: 1000}
	tests := []struct {
		name string
		snap engine.Snapshot
		key  tea.KeyMsg
		want []string
	}{
		{"tune up", powered, tea.KeyMsg{Type: tea.KeyUp}, []string{"tune 100.1"}},
		{"tune down", powered, runes("j"), []string{"tune 99.9"}},
		{"tune before first station", engine.Snapshot{Frequency: tuner.Invalid}, runes("k"), []string{"tune 87.6"}},
		{"seek up", powered, tea.KeyMsg{Type: tea.KeyRight}, []string{"seek on"}},
		{"seek down", powered, runes("h"), []string{"seek off"}},
		{"scan", powered, runes("s"), []string{"scan"}},
		{"stop scan", powered, runes("x"), []string{"stop_scan"}},
		{"power down", powered, runes("p"), []string{"power_down"}},
		{"power up", engine.Snapshot{Frequency: 935}, runes("p"), []string{"power_up 93.5"}},
		{"mute", powered, runes("m"), []string{"mute on"}},
		{"rds", engine.Snapshot{RDS: true}, runes("r"), []string{"rds off"}},
		{"speaker", powered, runes("o"), []string{"speaker on"}},
		{"start recording", powered, runes("R"), []string{"start_recording"}},
		{"stop and save", engine.Snapshot{Power: event.PoweredUp, Recorder: event.RecorderRecording}, runes("R"),
			[]string{"stop_recording", "save FM_20240309_070501"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := &fakeController{snap: tt.snap}
			press(t, newTestModel(ctl), tt.key)
			if strings.Join(ctl.calls, ",") != strings.Join(tt.want, ",") {
				t.Errorf("calls = %v, want %v", ctl.calls, tt.want)
			}
		})
	}
}

func TestConsole_QuitKey(t *testing.T) {
	t.Parallel()
	m := newTestModel(&fakeController{})
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestConsole_StationScreen(t *testing.T) {
	t.Parallel()
	ctl := &fakeController{}
	m := newTestModel(ctl)
	m = press(t, m,
		eventMsg{event.StationsChanged{Stations: []station.Station{
			{Frequency: 889, ProgramService: "JAZZ FM"},
			{Frequency: 935, Name: "News"},
		}}},
		tea.KeyMsg{Type: tea.KeyTab},
		tea.KeyMsg{Type: tea.KeyDown},
		tea.KeyMsg{Type: tea.KeyEnter},
	)
	if len(ctl.calls) != 1 || ctl.calls[0] != "tune 93.5" {
		t.Errorf("calls = %v", ctl.calls)
	}
	view := m.renderStations()
	for _, want := range []string{"88.9 MHz  JAZZ FM", "93.5 MHz  News"} {
		if !strings.Contains(view, want) {
			t.Errorf("station view missing %q:\n%s", want, view)
		}
	}
}

func TestConsole_RDSShownUntilRetune(t *testing.T) {
	t.Parallel()
	m := newTestModel(&fakeController{snap: engine.Snapshot{Power: event.PoweredUp, Frequency: 875}})
	m = press(t, m,
		eventMsg{event.ProgramServiceChanged{Frequency: 875, ProgramService: "ALPHA"}},
		eventMsg{event.RadioTextChanged{Frequency: 875, RadioText: "alpha text"}},
	)
	view := m.renderTuner()
	if !strings.Contains(view, "ALPHA") || !strings.Contains(view, "alpha text") {
		t.Errorf("tuner view missing rds:\n%s", view)
	}
	m = press(t, m, eventMsg{event.TuneFinished{OK: true, Frequency: 900}})
	if m.ps != "" || m.rt != "" {
		t.Errorf("rds not cleared after tune: ps=%q rt=%q", m.ps, m.rt)
	}
}

func TestConsole_EventLogIsBounded(t *testing.T) {
	t.Parallel()
	m := newTestModel(&fakeController{})
	for i := 0; i < logLines+5; i++ {
		m = press(t, m, eventMsg{event.MuteChanged{Muted: i%2 == 0}})
	}
	if len(m.log) != logLines {
		t.Errorf("log has %d lines, want %d", len(m.log), logLines)
	}
	if m.log[0] != "07:05:01 mute_changed" {
		t.Errorf("log line = %q", m.log[0])
	}
}

func TestConsole_ErrorsAreShown(t *testing.T) {
	t.Parallel()
	ctl := &fakeController{err: errors.New("engine closed")}
	m := press(t, newTestModel(ctl), runes("s"))
	if !strings.Contains(m.View(), "engine closed") {
		t.Errorf("view does not show the error:\n%s", m.View())
	}
}

func TestConsole_WaitForEvent(t *testing.T) {
	t.Parallel()
	events := make(chan event.Event, 1)
	m := NewConsoleModel(&fakeController{}, tuner.DefaultBand, nil, events)
	events <- event.Exited{}
	msg := m.Init()()
	if got, ok := msg.(eventMsg); !ok || got.ev.Name() != "exited" {
		t.Errorf("Init command returned %#v", msg)
	}
}
