// Package migrations embeds the SQL migration files into the binary.
//
// Each supported dialect has its own directory (sqlite3/, postgres/) holding
// the same migration versions.
package migrations

import (
	"embed"

	"github.com/nerrad567/quantum-task-core/internal/infrastructure/database"
)

//go:embed sqlite3/*.sql postgres/*.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
