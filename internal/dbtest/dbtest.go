// Package dbtest opens migrated sqlite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"testing"
	"time"

	"fknsrs.biz/p/sorm"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/ctxjobqueue"
	"fknsrs.biz/p/vidshare/internal/ctxlogger"
	"fknsrs.biz/p/vidshare/internal/jobqueue"
	"fknsrs.biz/p/vidshare/internal/migrations"
)

func init() {
	sorm.SetParameterPrefix("?")
}

// Start is the first time handed out by the clock from Context.
var Start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Open returns a migrated database in a fresh temporary file. A file is used
// rather than ":memory:" so that every pooled connection sees the same data.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=1&_busy_timeout=5000"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("dbtest.Open: could not open database: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	if err := migrations.Apply(Logger(context.Background()), db); err != nil {
		t.Fatalf("dbtest.Open: could not apply migrations: %v", err)
	}

	return db
}

// Logger attaches a logger that discards output.
func Logger(ctx context.Context) context.Context {
	l := logrus.New()
	l.SetOutput(io.Discard)

	return ctxlogger.WithLogger(ctx, l)
}

// Context returns a context carrying a fresh database, a quiet logger and a
// clock that advances one second on every read.
func Context(t testing.TB) (context.Context, *ctxclock.SteppingClock) {
	t.Helper()

	clock := ctxclock.NewSteppingClock(Start, time.Second)

	ctx := Logger(context.Background())
	ctx = ctxdb.WithDB(ctx, Open(t))
	ctx = ctxclock.WithClock(ctx, clock)

	return ctx, clock
}

// WithWorker puts a job queue worker on ctx with a no-op function for each of
// queueNames.
func WithWorker(ctx context.Context, queueNames ...string) (context.Context, *jobqueue.Worker) {
	m := make(map[string]jobqueue.WorkerFunction)
	for _, name := range queueNames {
		m[name] = func(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) { return "", nil }
	}

	w := jobqueue.NewWorker(m)

	return ctxjobqueue.WithWorker(ctx, w), w
}
