// SPDX-License-Identifier: MIT
package build

import (
	"errors"
	"os"
	"runtime"
	"strings"
	"testing"
)

func TestMain(m *testing.M) {
	code := m.Run()
	buildName, buildDescription, buildTime, buildCommit, buildVersion = "", "", "", "", ""
	buildFlags = defaultFlags()
	os.Exit(code)
}

func stamp(name, desc, at, commit, version string) {
	buildName, buildDescription, buildTime, buildCommit, buildVersion = name, desc, at, commit, version
	buildFlags = defaultFlags()
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		stamp       [5]string // name, description, time, commit, version
		wantMissing []string
		want        ldFlags
	}{
		{
			name:        "unstamped keeps dev defaults",
			wantMissing: []string{"BuildName", "BuildTime", "BuildCommit", "BuildVersion"},
			want:        *defaultFlags(),
		},
		{
			name:        "version only",
			stamp:       [5]string{"", "", "", "", "v1.4.0"},
			wantMissing: []string{"BuildName", "BuildTime", "BuildCommit"},
			want: ldFlags{
				Name: "fmradio", Description: "FM tuner control and recording engine",
				Time: "unknown", Commit: "unknown", Version: "v1.4.0",
			},
		},
		{
			name:  "release with custom description",
			stamp: [5]string{"fmradiod", "headless FM recorder", "2026-10-01T08:00:00Z", "4be81f0", "v2.0.0"},
			want: ldFlags{
				Name: "fmradiod", Description: "headless FM recorder",
				Time: "2026-10-01T08:00:00Z", Commit: "4be81f0", Version: "v2.0.0",
			},
		},
		{
			name:  "description is optional",
			stamp: [5]string{"fmradio", "", "2026-10-01", "4be81f0", "v2.0.1"},
			want: ldFlags{
				Name: "fmradio", Description: "FM tuner control and recording engine",
				Time: "2026-10-01", Commit: "4be81f0", Version: "v2.0.1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.stamp
			stamp(s[0], s[1], s[2], s[3], s[4])

			err := Initialize()
			if len(tt.wantMissing) == 0 {
				if err != nil {
					t.Fatalf("Initialize() unexpected error: %v", err)
				}
			} else {
				if !errors.Is(err, ErrMissingFlag) {
					t.Fatalf("Initialize() = %v, want ErrMissingFlag", err)
				}
				for _, name := range tt.wantMissing {
					if !strings.Contains(err.Error(), name) {
						t.Errorf("error %q does not name %s", err, name)
					}
				}
			}
			if got := *GetBuildFlags(); got != tt.want {
				t.Errorf("GetBuildFlags() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLdFlags_String(t *testing.T) {
	platform := runtime.GOOS + "/" + runtime.GOARCH
	tests := []struct {
		name  string
		flags ldFlags
		want  string
	}{
		{
			name:  "defaults",
			flags: *defaultFlags(),
			want:  "fmradio dev: FM tuner control and recording engine (commit unknown, built unknown, " + platform + ")",
		},
		{
			name:  "without description",
			flags: ldFlags{Name: "fmradio", Time: "2026-10-01", Commit: "4be81f0", Version: "v2.0.0"},
			want:  "fmradio v2.0.0 (commit 4be81f0, built 2026-10-01, " + platform + ")",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.flags.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLdFlags_Dev(t *testing.T) {
	if !defaultFlags().Dev() {
		t.Error("default build not reported as dev")
	}
	if (&ldFlags{Version: "v1.0.0"}).Dev() {
		t.Error("stamped build reported as dev")
	}
}
