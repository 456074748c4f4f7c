// Package version holds build metadata injected via ldflags, e.g.
//
//	go build -ldflags "-X github.com/kailas-cloud/searchidx/internal/version.Version=v0.3.0"
package version

import (
	"fmt"
	"runtime/debug"
)

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the build metadata. When no version was injected it falls
// back to the module version recorded by "go install".
func String() string {
	v := Version
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	return fmt.Sprintf("searchidx %s (commit %s, built %s)", v, Commit, Date)
}
