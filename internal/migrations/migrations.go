package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidshare/internal/ctxlogger"
)

//go:embed sql/*.sql
var files embed.FS

// Names lists the embedded migrations in the order they are applied.
func Names() ([]string, error) {
	names, err := fs.Glob(files, "sql/*.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations.Names: %w", err)
	}

	sort.Strings(names)

	return names, nil
}

// Apply runs every embedded migration that is not yet recorded in
// schema_migrations. Each migration runs in its own transaction.
func Apply(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "create table if not exists schema_migrations (name text primary key, applied_at datetime not null)"); err != nil {
		return fmt.Errorf("migrations.Apply: could not create schema_migrations table: %w", err)
	}

	names, err := Names()
	if err != nil {
		return fmt.Errorf("migrations.Apply: %w", err)
	}

	for _, name := range names {
		applied, err := apply(ctx, db, name)
		if err != nil {
			return fmt.Errorf("migrations.Apply: %w", err)
		}

		if applied {
			ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{"migration.name": name}).Info("applied migration")
		}
	}

	return nil
}

func apply(ctx context.Context, db *sql.DB, name string) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("apply: could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing string
	switch err := tx.QueryRowContext(ctx, "select name from schema_migrations where name = ?", name).Scan(&existing); {
	case err == nil:
		return false, nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return false, fmt.Errorf("apply: could not check migration %s: %w", name, err)
	}

	d, err := files.ReadFile(name)
	if err != nil {
		return false, fmt.Errorf("apply: could not read migration %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, string(d)); err != nil {
		return false, fmt.Errorf("apply: could not run migration %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, "insert into schema_migrations (name, applied_at) values (?, ?)", name, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("apply: could not record migration %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("apply: could not commit migration %s: %w", name, err)
	}

	return true, nil
}
