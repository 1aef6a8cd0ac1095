// Package version carries build metadata injected at link time.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the full build identity for -version output and logs.
func String() string {
	return fmt.Sprintf("assay.report %s (%s, built %s)", Version, GitSHA, BuildTime)
}
