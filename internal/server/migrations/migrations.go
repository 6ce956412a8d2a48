// Package migrations embeds the SQL schema migrations applied by goose at
// startup.
package migrations

import "embed"

//go:embed sql/*.sql
var FS embed.FS
