// Package migrations embeds the shop schema, applied at startup by
// database.RunMigrations in file-name order.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
