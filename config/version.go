package config

import "fmt"

// Build metadata, set at link time:
//
//	go build -ldflags "-X github.com/piiscan/analyzer/config.Version=v1.0.0 -X github.com/piiscan/analyzer/config.CommitHash=$(git rev-parse --short HEAD)"
var (
	Version    = "dev"
	CommitHash = "n/a"
	BuildTime  = "n/a"
)

// VersionString is printed by --version and sent in the X-Analyzer-Version header.
var VersionString = fmt.Sprintf("%s (commit %s, built %s)", Version, CommitHash, BuildTime)

// UserAgent identifies the service in calls to an upstream analyzer.
func UserAgent() string {
	return "piiscan-analyzer/" + Version
}
