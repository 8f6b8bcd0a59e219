// SPDX-License-Identifier: MIT
//
// Package build carries version metadata injected at compile time via
// -ldflags, for example:
//
//	go build -ldflags "\
//	  -X github.com/imSoTn/audioreact/pkg/build.buildName=audioreact \
//	  -X github.com/imSoTn/audioreact/pkg/build.buildVersion=0.3.0 \
//	  -X github.com/imSoTn/audioreact/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X github.com/imSoTn/audioreact/pkg/build.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package build

import "fmt"

// Info is the resolved build metadata, available after Initialize.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// Populated by -ldflags; empty in a plain `go build`.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

// info defaults describe a development build and are overwritten by
// Initialize when ldflags are present.
var info = Info{
	Name:    "audioreact",
	Time:    "unknown",
	Commit:  "unknown",
	Version: "dev",
}

// Initialize resolves the build metadata. A build with no ldflags at all
// keeps the development defaults; a build that injects some flags must
// inject all four, since a partial set means the release script is broken.
func Initialize() error {
	injected := 0
	for _, v := range []string{buildName, buildTime, buildCommit, buildVersion} {
		if v != "" {
			injected++
		}
	}

	if injected == 0 {
		return nil
	}
	if injected < 4 {
		return fmt.Errorf("build: partial ldflags injection (%d of 4 set): name=%q time=%q commit=%q version=%q",
			injected, buildName, buildTime, buildCommit, buildVersion)
	}

	info = Info{
		Name:    buildName,
		Time:    buildTime,
		Commit:  buildCommit,
		Version: buildVersion,
	}
	return nil
}

// GetBuildFlags returns the current build metadata: development defaults
// before Initialize, the injected values after.
func GetBuildFlags() *Info {
	return &info
}

// String renders the metadata in one line for logs and the version command.
func (i *Info) String() string {
	return fmt.Sprintf("%s %s (%s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}
