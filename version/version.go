// Package version reports what build of scrapstudio is running and which
// job parameter contract it speaks to the engine.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/Masterminds/semver/v3"

	"github.com/teranos/scrapstudio/jobs"
)

// Set at build time via -ldflags "-X github.com/teranos/scrapstudio/version.Version=..."
var (
	CommitHash = "dev"
	BuildTime  = "unknown"
	Version    = "dev"
)

// Info describes the running binary
type Info struct {
	Version       string `json:"version"`
	CommitHash    string `json:"commit_hash"`
	BuildTime     string `json:"build_time"`
	Modified      bool   `json:"modified,omitempty"`
	ParamsVersion string `json:"params_version"`
	GoVersion     string `json:"go_version"`
	Platform      string `json:"platform"`
}

// Get returns the build information. Values not injected through ldflags
// are taken from the VCS stamp Go embeds in the binary, when present.
func Get() Info {
	info := Info{
		Version:       Version,
		CommitHash:    CommitHash,
		BuildTime:     BuildTime,
		ParamsVersion: jobs.ParamsVersion,
		GoVersion:     runtime.Version(),
		Platform:      fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.applyBuildInfo(bi)
	}
	return info
}

func (i *Info) applyBuildInfo(bi *debug.BuildInfo) {
	if i.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if i.CommitHash == "dev" {
				i.CommitHash = s.Value
			}
		case "vcs.time":
			if i.BuildTime == "unknown" {
				i.BuildTime = s.Value
			}
		case "vcs.modified":
			i.Modified = s.Value == "true"
		}
	}
}

// Release reports whether Version is a semantic version rather than a dev build
func (i Info) Release() bool {
	_, err := semver.NewVersion(i.Version)
	return err == nil
}

// String returns a human-readable version line
func (i Info) String() string {
	commit := i.Short()
	if i.Modified {
		commit += "+dirty"
	}
	if !i.Release() {
		return fmt.Sprintf("scrapstudio dev (commit %s, built %s, params %s)", commit, i.BuildTime, i.ParamsVersion)
	}
	return fmt.Sprintf("scrapstudio %s (commit %s, built %s, params %s)", i.Version, commit, i.BuildTime, i.ParamsVersion)
}

// Short returns the abbreviated commit hash
func (i Info) Short() string {
	if len(i.CommitHash) > 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}
