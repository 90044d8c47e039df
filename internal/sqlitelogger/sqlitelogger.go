package sqlitelogger

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode"

	proxy "github.com/shogo82148/go-sql-proxy"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxlogger"
	"fknsrs.biz/p/vidshare/internal/stackutil"
)

var (
	ErrCancelLogging = fmt.Errorf("cancel logging")
)

type Stats struct {
	Start    time.Time
	Duration time.Duration
	Stack    []runtime.Frame

	query     string
	queryText string
	queryArgs []driver.NamedValue
}

func (s *Stats) Query() string {
	if s.query == "" && s.queryText != "" {
		s.query = PrintQuery(s.queryText, s.queryArgs)
	}
	return s.query
}

type Filter interface {
	PreCollection(ctx context.Context, stats *Stats) error
	PreLogging(ctx context.Context, stats *Stats) error
	HideStackFrame(ctx context.Context, index int, frame runtime.Frame) (bool, error)
}

func makeStats(ctx context.Context, stmt *proxy.Stmt, args []driver.NamedValue, filters []Filter) (*Stats, error) {
	stats := &Stats{
		Start: ctxclock.NowOrReal(ctx),
		Stack: stackutil.GetStack(100, 1),
	}

	if stmt != nil {
		stats.queryText = stmt.QueryString
		stats.queryArgs = args
	}

	for _, filter := range filters {
		if err := filter.PreCollection(ctx, stats); err != nil {
			if errors.Is(err, ErrCancelLogging) {
				return nil, nil
			}

			return nil, err
		}
	}

	return stats, nil
}

func logStats(ctx context.Context, upperError error, qctx interface{}, filters []Filter, prefix, message string) error {
	if upperError != nil {
		return upperError
	}

	stats, ok := qctx.(*Stats)
	if !ok || stats == nil {
		return nil
	}

	stats.Duration = ctxclock.NowOrReal(ctx).Sub(stats.Start)

	for _, filter := range filters {
		if err := filter.PreLogging(ctx, stats); err != nil {
			if errors.Is(err, ErrCancelLogging) {
				return nil
			}

			return err
		}
	}

	fields := logrus.Fields{
		prefix + ".start":    stats.Start.Format(time.RFC3339),
		prefix + ".duration": stats.Duration,
	}

	if q := stats.Query(); q != "" {
		fields[prefix+".content"] = q
	}

loop:
	for index, frame := range stats.Stack {
		for _, filter := range filters {
			hide, err := filter.HideStackFrame(ctx, index, frame)
			if err != nil {
				return err
			}
			if hide {
				continue loop
			}
		}

		fields[fmt.Sprintf("%s.stack.%02d", prefix, index)] = stackutil.FormatStackFrame(frame)
	}

	ctxlogger.GetLogger(ctx).WithFields(fields).Debug(message)

	return nil
}

// New wraps a driver so that statements and transaction boundaries are logged
// through the logger on the statement's context.
func New(wrapped driver.Driver, filters ...Filter) driver.Driver {
	return proxy.NewProxyContext(wrapped, &proxy.HooksContext{
		PreExec: func(ctx context.Context, stmt *proxy.Stmt, args []driver.NamedValue) (interface{}, error) {
			return makeStats(ctx, stmt, args, filters)
		},
		PostExec: func(ctx context.Context, qctx interface{}, stmt *proxy.Stmt, args []driver.NamedValue, _ driver.Result, err error) error {
			return logStats(ctx, err, qctx, filters, "sql.exec", "sql exec")
		},
		PreQuery: func(ctx context.Context, stmt *proxy.Stmt, args []driver.NamedValue) (interface{}, error) {
			return makeStats(ctx, stmt, args, filters)
		},
		PostQuery: func(ctx context.Context, qctx interface{}, stmt *proxy.Stmt, args []driver.NamedValue, _ driver.Rows, err error) error {
			return logStats(ctx, err, qctx, filters, "sql.query", "sql query")
		},
		PreBegin: func(ctx context.Context, conn *proxy.Conn) (interface{}, error) {
			return makeStats(ctx, nil, nil, filters)
		},
		PostBegin: func(ctx context.Context, qctx interface{}, conn *proxy.Conn, err error) error {
			return logStats(ctx, err, qctx, filters, "sql.tx_begin", "sql tx begin")
		},
		PreCommit: func(ctx context.Context, tx *proxy.Tx) (interface{}, error) {
			return makeStats(ctx, nil, nil, filters)
		},
		PostCommit: func(ctx context.Context, qctx interface{}, tx *proxy.Tx, err error) error {
			return logStats(ctx, err, qctx, filters, "sql.tx_commit", "sql tx commit")
		},
		PreRollback: func(ctx context.Context, tx *proxy.Tx) (interface{}, error) {
			return makeStats(ctx, nil, nil, filters)
		},
		PostRollback: func(ctx context.Context, qctx interface{}, tx *proxy.Tx, err error) error {
			return logStats(ctx, err, qctx, filters, "sql.tx_rollback", "sql tx rollback")
		},
	})
}

type BasicFilter struct {
	CancelAll                bool
	LogSlowerThan            time.Duration
	IgnorePackageStackFrames []string
	IgnoreFunctionQueries    []string
}

func (b *BasicFilter) PreCollection(ctx context.Context, stats *Stats) error {
	if b.CancelAll {
		return ErrCancelLogging
	}

	for _, functionName := range b.IgnoreFunctionQueries {
		for _, frame := range stats.Stack {
			if frame.Function == functionName {
				return ErrCancelLogging
			}
		}
	}

	return nil
}

func (b *BasicFilter) PreLogging(ctx context.Context, stats *Stats) error {
	if b.CancelAll {
		return ErrCancelLogging
	}

	if b.LogSlowerThan != 0 && stats.Duration < b.LogSlowerThan {
		return ErrCancelLogging
	}

	return nil
}

func (b *BasicFilter) HideStackFrame(ctx context.Context, index int, frame runtime.Frame) (bool, error) {
	for _, packageName := range b.IgnorePackageStackFrames {
		if strings.HasPrefix(frame.Function, packageName+".") || strings.HasPrefix(frame.Function, packageName+"/") {
			return true, nil
		}
	}

	return false, nil
}

var (
	placeholderPattern = regexp.MustCompile(`[?$]([0-9]*)`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

// PrintQuery inlines arguments into a query for display. It understands
// sqlite's positional (?), numbered (?N) and postgres-style ($N) placeholders.
func PrintQuery(sqlString string, args []driver.NamedValue) string {
	next := 0

	s := placeholderPattern.ReplaceAllStringFunc(sqlString, func(s string) string {
		var i int

		if len(s) == 1 {
			if s == "$" {
				return s
			}

			next++
			i = next
		} else {
			n, err := strconv.Atoi(s[1:])
			if err != nil {
				return s
			}
			i = n
		}

		if i < 1 || i > len(args) {
			return s
		}

		return formatValue(args[i-1].Value)
	})

	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

const sqlNull = "NULL"

func formatValue(v interface{}) string {
	if valuer, ok := v.(driver.Valuer); ok {
		vv, err := valuer.Value()
		if err != nil {
			return "[invalid value]"
		}
		v = vv
	}

	switch e := v.(type) {
	case nil:
		return sqlNull
	case bool:
		return fmt.Sprintf("%t", e)
	case float64:
		return fmt.Sprintf("%f", e)
	case int:
		return fmt.Sprintf("%d", e)
	case int64:
		return fmt.Sprintf("%d", e)
	case string:
		return makePrintable(e)
	case time.Time:
		return fmt.Sprintf("'%s'", e.Format(time.RFC3339Nano))
	case []byte:
		return makePrintable(string(e))
	default:
		return makePrintable(fmt.Sprintf("%v", e))
	}
}

func makePrintable(s string) string {
	if r, ok := printable(s); !ok {
		return fmt.Sprintf("[%d bytes of binary data (%q)]", len(s), r)
	}

	return fmt.Sprintf("'%s'", s)
}

func printable(s string) (rune, bool) {
	for _, r := range s {
		if unicode.IsControl(r) {
			return r, false
		}

		if unicode.IsPrint(r) {
			continue
		}

		if r > unicode.MaxASCII {
			return r, false
		}
	}

	return 0, true
}
