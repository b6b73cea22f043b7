// Package migrations embeds the loyalty schema migration files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
