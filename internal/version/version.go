// Package version exposes build metadata stamped at release time with
// -ldflags "-X github.com/opsgrep/lograg/internal/version.Version=...".
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the stamped metadata in one line for the version command.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
