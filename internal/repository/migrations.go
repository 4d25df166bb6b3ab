package repository

import (
	"embed"
	"io/fs"

	"go.uber.org/zap"

	"github.com/garyjia/billing-master/pkg/database"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies the run history schema
func Migrate(db *database.DB, logger *zap.Logger) error {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	return database.NewMigrator(db, logger).Run(sub)
}
