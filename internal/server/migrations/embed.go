// Package migrations embeds the goose SQL migrations for the two tables the
// auth core owns.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
