// Package build carries version metadata set at link time via -ldflags.
package build

import "fmt"

// Version, Branch and Revision are overwritten at build time with
// -ldflags "-X github.com/nodebridge/blockqueue/cmd/blockqueue/build.Version=...".
var (
	Version  = "unknown"
	Branch   = "unknown"
	Revision = "unknown"
)

// Print returns a human-readable version string for app's -version flag.
func Print(app string) string {
	return fmt.Sprintf("%s, version %s (branch: %s, revision: %s)", app, Version, Branch, Revision)
}
