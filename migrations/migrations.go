// Package migrations embeds the schema migrations for every supported
// storage driver. Each driver has its own directory.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite3/*.sql
var FS embed.FS
