// Package migrations embeds the goose schema migrations for each supported
// SQL dialect.
package migrations

import (
	"embed"

	"github.com/dmitrijs2005/mediakeeper/internal/dbx"
)

//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS

// Dir returns the directory inside Migrations holding the dialect's files.
func Dir(d dbx.Dialect) string {
	if d == dbx.Postgres {
		return "postgres"
	}
	return "sqlite"
}
