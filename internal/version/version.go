// Package version holds build-time version information for the supportai
// binary. The variables are populated via -ldflags:
//
//	go build -ldflags="-X github.com/54b3r/supportai-go/internal/version.Version=v0.3.0 \
//	                    -X github.com/54b3r/supportai-go/internal/version.Commit=abc1234 \
//	                    -X github.com/54b3r/supportai-go/internal/version.BuildDate=2026-01-01"
//
// Without ldflags (e.g. `go run`) the defaults below apply.
package version

import (
	"fmt"
	"runtime"
)

// Version is the semantic version of the binary. Defaults to "dev".
var Version = "dev"

// Commit is the short git SHA the binary was built from.
var Commit = "unknown"

// BuildDate is the UTC build date in RFC3339 format.
var BuildDate = "unknown"

// String returns the one-line description printed by `supportai version`.
func String() string {
	return fmt.Sprintf("supportai %s (commit %s, built %s, %s)", Version, Commit, BuildDate, runtime.Version())
}
