// Package migrations embeds the SQL schema migrations into the binary
// and registers them with the database package.
//
// Import for side effects:
//
//	import _ "github.com/verdantlabs/pestguard-core/migrations"
package migrations

import (
	"embed"

	"github.com/verdantlabs/pestguard-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
