package app

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"proxymart/internal/app/logger"
)

func applyMigrations(embedMigrations embed.FS, db *sql.DB) error {
	l := logger.Global().WithComponent("App.Migrations")

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	v, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("goose version: %w", err)
	}
	l.Info().Int64("db_version", v).Msg("Migrations applied")

	return nil
}
