// Package misc keeps small helpers with no better home.
package misc

import (
	"runtime/debug"
)

const appName = "sfb"

// set by build using ldflags
var (
	LastGitCommit = "unknown"
	AppVersion    = "development"
)

// GetAppName returns short program name to be used in logs and messages.
func GetAppName() string {
	return appName
}

// GetVersion returns program version to be used in logs and messages.
func GetVersion() string {
	if AppVersion != "development" {
		return AppVersion
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return AppVersion
}

// GetGitHash returns git commit hash recorded during the build.
func GetGitHash() string {
	if LastGitCommit != "unknown" {
		return LastGitCommit
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return LastGitCommit
}
