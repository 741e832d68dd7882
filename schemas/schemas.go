// Package schemas embeds the JSON schemas of the observer protocol.
package schemas

import "embed"

//go:embed *.schema.json
var FS embed.FS
