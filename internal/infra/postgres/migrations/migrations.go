package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the schema steps, applied by `quizroom migrate`.
var Migrations = migrate.NewMigrations()
