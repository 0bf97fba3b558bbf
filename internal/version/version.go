// Package version carries build metadata injected with -ldflags.
package version

// Populated at build time:
//
//	go build -ldflags "-X github.com/doeshing/pmpilot/internal/version.Version=v0.2.0"
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)
