// Package assets embeds the files pmpilot writes on first run.
package assets

import (
	_ "embed"
)

// DefaultConfigYAML is written to ~/.pmpilot/config.yaml when no config file
// exists yet, and is the baseline "config diff" compares against.
//
//go:embed defaults/config.yaml
var DefaultConfigYAML []byte
