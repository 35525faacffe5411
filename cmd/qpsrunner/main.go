package main

import "github.com/3leaps/qpsrunner/internal/cmd"

// Build metadata, injected via -ldflags at release time.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	cmd.Execute()
}
