// Package db embeds the SQL schema migrations so release builds can migrate
// without the source tree.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
