// Package schemas provides embedded parameter schema files for the
// registered operations.
package schemas

import "embed"

// FS contains all operation parameter schemas embedded at compile time.
// Access schemas via FS.ReadFile("get_cpu_usage/v1.json"), etc.
//
//go:embed */v1.json
var FS embed.FS
