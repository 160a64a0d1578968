// Package migrations embeds the goose SQL migrations in ascending order by filename.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
