package envx

import "fmt"

// Version of the envx library
const Version = "0.1.0"

// Build information (set by ldflags during build)
var (
	GitCommit string
	BuildDate string
)

// VersionInfo returns formatted version information
func VersionInfo() string {
	if GitCommit == "" {
		return fmt.Sprintf("envx v%s", Version)
	}
	return fmt.Sprintf("envx v%s (commit: %s, built: %s)", Version, GitCommit, BuildDate)
}
