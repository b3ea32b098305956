package migrate

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/RaikyD/merch-pickup-service/internal/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Up applies the embedded schema migrations to the database at dsn.
func Up(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	v, err := goose.GetDBVersion(db)
	if err == nil {
		logger.Info("schema migrated", "version", v)
	}
	return nil
}
