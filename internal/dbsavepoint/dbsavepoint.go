package dbsavepoint

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

var (
	ErrAlreadyRolledBack = fmt.Errorf("dbsavepoint: savepoint already rolled back")
	ErrAlreadyReleased   = fmt.Errorf("dbsavepoint: savepoint already released")
	ErrInvalidName       = fmt.Errorf("dbsavepoint: invalid savepoint name")
)

var validName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Savepoint is a named savepoint inside a transaction. Savepoints created from a
// *sql.DB own their transaction and commit or roll it back with themselves.
type Savepoint struct {
	tx         *sql.Tx
	name       string
	ownsTx     bool
	released   bool
	rolledBack bool
}

func quote(name string) string {
	return `"` + name + `"`
}

func CreateFromDB(ctx context.Context, db *sql.DB, name string) (*Savepoint, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("dbsavepoint.CreateFromDB: %q: %w", name, ErrInvalidName)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("dbsavepoint.CreateFromDB: could not begin transaction: %w", err)
	}

	sp, err := CreateFromTx(ctx, tx, name)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("dbsavepoint.CreateFromDB: %w", err)
	}

	sp.ownsTx = true

	return sp, nil
}

func CreateFromTx(ctx context.Context, tx *sql.Tx, name string) (*Savepoint, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("dbsavepoint.CreateFromTx: %q: %w", name, ErrInvalidName)
	}

	if _, err := tx.ExecContext(ctx, "savepoint "+quote(name)); err != nil {
		return nil, fmt.Errorf("dbsavepoint.CreateFromTx: %w", err)
	}

	return &Savepoint{name: name, tx: tx}, nil
}

func (sp *Savepoint) Name() string { return sp.name }

func (sp *Savepoint) check() error {
	switch {
	case sp.rolledBack:
		return ErrAlreadyRolledBack
	case sp.released:
		return ErrAlreadyReleased
	default:
		return nil
	}
}

func (sp *Savepoint) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if err := sp.check(); err != nil {
		return nil, err
	}

	return sp.tx.QueryContext(ctx, query, args...)
}

func (sp *Savepoint) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	// a finished savepoint still hands back a row; the driver reports the error on Scan
	return sp.tx.QueryRowContext(ctx, query, args...)
}

func (sp *Savepoint) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if err := sp.check(); err != nil {
		return nil, err
	}

	return sp.tx.ExecContext(ctx, query, args...)
}

// Tx exposes the underlying transaction for code that needs a *sql.Tx.
func (sp *Savepoint) Tx() *sql.Tx { return sp.tx }

// Create opens a nested savepoint. Nested names are joined with "__".
func (sp *Savepoint) Create(ctx context.Context, name string) (*Savepoint, error) {
	if err := sp.check(); err != nil {
		return nil, err
	}

	child, err := CreateFromTx(ctx, sp.tx, strings.Join([]string{sp.name, name}, "__"))
	if err != nil {
		return nil, fmt.Errorf("dbsavepoint.Savepoint.Create: %w", err)
	}

	return child, nil
}

func (sp *Savepoint) Release(ctx context.Context) error {
	if err := sp.check(); err != nil {
		return err
	}

	sp.released = true

	if _, err := sp.tx.ExecContext(ctx, "release savepoint "+quote(sp.name)); err != nil {
		return fmt.Errorf("dbsavepoint.Savepoint.Release: %w", err)
	}

	if sp.ownsTx {
		if err := sp.tx.Commit(); err != nil {
			return fmt.Errorf("dbsavepoint.Savepoint.Release: could not commit: %w", err)
		}
	}

	return nil
}

func (sp *Savepoint) Rollback(ctx context.Context) error {
	if err := sp.check(); err != nil {
		return err
	}

	sp.rolledBack = true

	if _, err := sp.tx.ExecContext(ctx, "rollback to savepoint "+quote(sp.name)); err != nil {
		return fmt.Errorf("dbsavepoint.Savepoint.Rollback: %w", err)
	}

	if sp.ownsTx {
		if err := sp.tx.Rollback(); err != nil {
			return fmt.Errorf("dbsavepoint.Savepoint.Rollback: could not roll back: %w", err)
		}
	}

	return nil
}
