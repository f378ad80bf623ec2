package audio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

func mockDevices(t *testing.T, devices []*portaudio.DeviceInfo, err error) {
	t.Helper()
	orig := paLibDevicesFunc
	t.Cleanup(func() { paLibDevicesFunc = orig })
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return devices, err }
}

func fakeDevices() []*portaudio.DeviceInfo {
	return []*portaudio.DeviceInfo{
		{Name: "tuner line-in", MaxInputChannels: 2, DefaultSampleRate: 44100, DefaultLowInputLatency: 5 * time.Millisecond, DefaultHighInputLatency: 20 * time.Millisecond},
		{Name: "speaker", MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{Name: "duplex", MaxInputChannels: 1, MaxOutputChannels: 1, DefaultSampleRate: 44100},
	}
}

func TestHostDevices(t *testing.T) {
	mockDevices(t, fakeDevices(), nil)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("got %d devices, want 3", len(devices))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
	}
	if got := devices[0].LowLatencyMs; got != 5 {
		t.Errorf("low latency = %v, want 5", got)
	}
	wantDir := []string{"Input", "Output", "Input/Output"}
	for i, d := range devices {
		if d.Direction() != wantDir[i] {
			t.Errorf("device %d direction = %q, want %q", i, d.Direction(), wantDir[i])
		}
	}
}

func TestHostDevices_Error(t *testing.T) {
	mockDevices(t, nil, fmt.Errorf("mock error"))

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestHostDevices_NilList(t *testing.T) {
	mockDevices(t, nil, nil)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("got %d devices, want 0", len(devices))
	}
}

func TestInputDevice(t *testing.T) {
	mockDevices(t, fakeDevices(), nil)
	def := &portaudio.DeviceInfo{Name: "default in"}
	orig := paLibDefaultInputDeviceFunc
	t.Cleanup(func() { paLibDefaultInputDeviceFunc = orig })
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) { return def, nil }

	tests := []struct {
		name    string
		id      int
		want    string
		wantErr string
	}{
		{"default", DefaultDeviceID, "default in", ""},
		{"input capable", 0, "tuner line-in", ""},
		{"duplex", 2, "duplex", ""},
		{"output only", 1, "", "does not support input"},
		{"out of range", 7, "", "invalid device ID: 7"},
		{"negative", -5, "", "invalid device ID: -5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := InputDevice(tt.id)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dev.Name != tt.want {
				t.Errorf("device = %q, want %q", dev.Name, tt.want)
			}
		})
	}
}

func TestOutputDevice(t *testing.T) {
	mockDevices(t, fakeDevices(), nil)

	if _, err := OutputDevice(0); err == nil || !strings.Contains(err.Error(), "does not support output") {
		t.Errorf("expected output error, got %v", err)
	}
	dev, err := OutputDevice(1)
	if err != nil {
		t.Fatalf("OutputDevice(1): %v", err)
	}
	if dev.Name != "speaker" {
		t.Errorf("device = %q, want speaker", dev.Name)
	}
}

func TestInitializeTerminate_Errors(t *testing.T) {
	origInit, origTerm := paLibInitialize, paLibTerminate
	t.Cleanup(func() { paLibInitialize, paLibTerminate = origInit, origTerm })
	paLibInitialize = func() error { return fmt.Errorf("no host api") }
	paLibTerminate = func() error { return fmt.Errorf("not initialised") }

	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "failed to initialize PortAudio") {
		t.Errorf("Initialize err = %v", err)
	}
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "failed to terminate PortAudio") {
		t.Errorf("Terminate err = %v", err)
	}
}

func TestListDevices(t *testing.T) {
	mockDevices(t, fakeDevices(), nil)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"[0] tuner line-in (Input)", "[1] speaker (Output)", "Default sample rate: 48000 Hz"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
