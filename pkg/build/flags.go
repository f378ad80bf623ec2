// SPDX-License-Identifier: MIT
//
// Package build carries the metadata stamped into the binary with -ldflags:
// name, description, build time, commit and version. Unstamped fields keep
// their development defaults so a plain `go build` still reports something
// useful in the version banner and the CLI help.
package build

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrMissingFlag wraps every required ldflag left empty at link time.
var ErrMissingFlag = errors.New("build flag not set")

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Set with -ldflags "-X fmradio/pkg/build.buildVersion=v1.2.0" and friends.
// buildDescription is optional.
var (
	buildName        string
	buildDescription string
	buildTime        string
	buildCommit      string
	buildVersion     string
	buildFlags       = defaultFlags()
)

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:        "fmradio",
		Description: "FM tuner control and recording engine",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize copies every stamped value into the build info. A partially
// stamped binary keeps what it has; the returned error names each required
// flag that was missing.
func Initialize() error {
	var errs []error
	for _, f := range []struct {
		name string
		val  string
		dst  *string
	}{
		{"BuildName", buildName, &buildFlags.Name},
		{"BuildTime", buildTime, &buildFlags.Time},
		{"BuildCommit", buildCommit, &buildFlags.Commit},
		{"BuildVersion", buildVersion, &buildFlags.Version},
	} {
		if f.val == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingFlag, f.name))
			continue
		}
		*f.dst = f.val
	}
	if buildDescription != "" {
		buildFlags.Description = buildDescription
	}
	return errors.Join(errs...)
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// Dev reports an unstamped version.
func (f *ldFlags) Dev() bool { return f.Version == "dev" }

// String is the one-line version banner.
func (f *ldFlags) String() string {
	var b strings.Builder
	b.WriteString(f.Name + " " + f.Version)
	if f.Description != "" {
		b.WriteString(": " + f.Description)
	}
	fmt.Fprintf(&b, " (commit %s, built %s, %s/%s)", f.Commit, f.Time, runtime.GOOS, runtime.GOARCH)
	return b.String()
}
