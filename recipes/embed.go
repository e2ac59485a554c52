// Package recipes embeds the built-in component recipes.
package recipes

import "embed"

// FS holds every *.yml recipe shipped with the binary
//
//go:embed *.yml
var FS embed.FS
