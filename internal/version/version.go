// Package version reports the build version of captive-config.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Set at link time:
//
//	go build -ldflags="-X github.com/muurk/captiveconfig/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/captiveconfig/internal/version.Commit=abc1234"
//
// Unset values are filled from the module's VCS stamp, then from "dev"/"unknown".
var (
	Version = ""
	Commit  = ""
)

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			Version, Commit = fromSettings(Version, Commit, info.Settings)
		}
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromSettings fills whichever of version and commit are empty from the
// vcs.* build settings.
func fromSettings(version, commit string, settings []debug.BuildSetting) (string, string) {
	vcs := make(map[string]string, len(settings))
	for _, s := range settings {
		vcs[s.Key] = s.Value
	}

	if commit == "" {
		if rev := vcs["vcs.revision"]; rev != "" {
			if len(rev) > 7 {
				rev = rev[:7]
			}
			if vcs["vcs.modified"] == "true" {
				rev += "-dirty"
			}
			commit = rev
		}
	}

	if version == "" {
		if t, err := time.Parse(time.RFC3339, vcs["vcs.time"]); err == nil {
			version = "dev-" + t.UTC().Format("20060102")
		}
	}
	return version, commit
}

// Full returns "<version> (commit: <commit>)".
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
