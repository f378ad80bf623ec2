package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	stations := filepath.Join(dir, "stations.yaml")
	content := "log_level: error\n" +
		"recording:\n  root: " + dir + "\n  watch_mounts: false\n" +
		"stations:\n  path: " + stations + "\n" + body
	path := filepath.Join(dir, "fmradio.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path, stations
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "fmradio ") {
		t.Errorf("version output = %q", out)
	}
}

func TestScanCommand_PersistsStations(t *testing.T) {
	path, stations := writeConfig(t, "rds:\n  enabled: false\n")

	out, err := run(t, "scan", "--config", path, "--timeout", "10s")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "found 5 station(s)") {
		t.Errorf("scan output = %q", out)
	}
	if _, err := os.Stat(stations); err != nil {
		t.Fatalf("station file not written: %v", err)
	}

	out, err = run(t, "stations", "--config", path)
	if err != nil {
		t.Fatalf("stations: %v", err)
	}
	for _, want := range []string{"88.9 MHz", "93.5 MHz", "106.1 MHz"} {
		if !strings.Contains(out, want) {
			t.Errorf("stations output missing %s:\n%s", want, out)
		}
	}
}

func TestStationsCommand_Empty(t *testing.T) {
	path, _ := writeConfig(t, "")
	out, err := run(t, "stations", "--config", path, "--favorites")
	if err != nil {
		t.Fatalf("stations: %v", err)
	}
	if strings.TrimSpace(out) != "no stations" {
		t.Errorf("output = %q", out)
	}
}

func TestFlagOverridesAreValidated(t *testing.T) {
	path, _ := writeConfig(t, "")
	_, err := run(t, "stations", "--config", path, "--driver", "hackrf")
	if err == nil || !strings.Contains(err.Error(), "tuner.driver") {
		t.Errorf("err = %v, want a tuner.driver validation error", err)
	}
}

func TestNewApp_RTPBackendNeedsTarget(t *testing.T) {
	path, _ := writeConfig(t, "audio:\n  backend: rtp\n")
	_, err := run(t, "scan", "--config", path)
	if err == nil || !strings.Contains(err.Error(), "transport.rtp.target") {
		t.Errorf("err = %v", err)
	}
}
