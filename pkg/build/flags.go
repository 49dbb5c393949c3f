// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata embedded into the binary at compile time
// with linker flags:
//
//	go build -ldflags "-X radar/pkg/build.buildName=radar -X radar/pkg/build.buildVersion=0.2.0 ..."
//
// Development builds carry no linker flags; their version and commit are read
// from the module build info instead.
package build

import (
	"fmt"
	"runtime/debug"
)

const (
	defaultName        = "radar"
	defaultDescription = "Radargram processing pipeline: stacking, pulse compression, detection"
)

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

func (i *Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = unknownInfo()
)

func unknownInfo() *Info {
	return &Info{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "unknown",
	}
}

// Initialize copies the linker-provided values into the build info. If no
// flag was provided at all the binary is a development build and the module
// build info is used. A partially flagged build is an error.
func Initialize() error {
	if buildName == "" && buildTime == "" && buildCommit == "" && buildVersion == "" {
		fromBuildInfo(buildFlags)
		return nil
	}

	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

func fromBuildInfo(info *Info) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if v := bi.Main.Version; v != "" {
		info.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
		case "vcs.time":
			info.Time = s.Value
		}
	}
}

// GetBuildFlags returns the current build information. Call Initialize first.
func GetBuildFlags() *Info {
	return buildFlags
}
