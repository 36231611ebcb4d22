// Package version holds build information, overridden with -ldflags:
//
//	go build -ldflags "-X rainy/internal/version.Version=v0.4.0 -X rainy/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a one-line description of the build
func Info() string {
	return fmt.Sprintf("rainy %s (commit %s, built %s)", Version, Commit, Date)
}

// UserAgent is sent with every request made by the SDK
func UserAgent() string {
	return "rainy-go/" + Version
}
