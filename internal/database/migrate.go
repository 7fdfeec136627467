package database

import (
	"context"
	"embed"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies every pending migration embedded in the binary.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("mysql"); err != nil {
		return errors.Wrap(err, "goose dialect")
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return errors.Wrap(err, "goose up")
	}
	return nil
}

// Version reports the current schema version.
func Version(ctx context.Context, db *sqlx.DB) (int64, error) {
	if err := goose.SetDialect("mysql"); err != nil {
		return 0, errors.Wrap(err, "goose dialect")
	}
	return goose.GetDBVersionContext(ctx, db.DB)
}
