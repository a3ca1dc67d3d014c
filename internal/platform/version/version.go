package version

import (
	"fmt"
	"runtime"

	"github.com/pscheid92/tmi/internal/metrics"
)

// Build information, injected via ldflags at build time
var (
	// Version is the git tag or semantic version
	Version = "dev"
	// Commit is the git commit SHA
	Commit = "unknown"
	// BuildTime is the ISO 8601 build timestamp
	BuildTime = "unknown"
)

// Info holds complete build information
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the current build information
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// UserAgent is sent with outgoing REST calls.
func (i Info) UserAgent() string {
	return fmt.Sprintf("tmibot/%s (%s)", i.Version, i.Commit)
}

// Publish exports the build information as the build_info gauge.
func (i Info) Publish() {
	metrics.BuildInfo.WithLabelValues(i.Version, i.Commit, i.BuildTime, i.GoVersion).Set(1)
}
