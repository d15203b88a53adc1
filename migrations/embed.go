// Package migrations embeds SQL migration files into the binary.
//
// The daemon runs migrations on startup without needing the SQL files on
// the filesystem.
package migrations

import (
	"embed"

	"github.com/Moudilu/audio-controller/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at root of embedded FS
}
