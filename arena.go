package arena

import (
	_ "embed"
)

// Version is the release of the arena module.
//
//go:embed VERSION
var Version string
