package migration

import "embed"

// scriptsFS holds the versioned SQL shipped with the binary.
//
//go:embed scripts
var scriptsFS embed.FS

const (
	gooseSQLiteDir = "scripts/goose/sqlite"
	gooseMySQLDir  = "scripts/goose/mysql"
	migrateDir     = "scripts/migrate/mysql"
)
