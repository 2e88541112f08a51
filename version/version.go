// Package version exposes build metadata injected via ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/teranos/iiify/version.Version=v1.2.3 ..."
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)

// Info bundles version and build information for display and JSON output
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the current build's version information
func Get() Info {
	return Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns a human-readable version line
func (i Info) String() string {
	return fmt.Sprintf("iiify %s (commit %s, built %s)", i.Version, i.CommitHash, i.BuildTime)
}

// Short returns the abbreviated commit hash
func (i Info) Short() string {
	if len(i.CommitHash) >= 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}
