// Package pagination implements keyset (cursor) pagination over a descending
// (sort value, id) key.
//
// A page is fetched with limit+1 rows. If the extra row comes back it is
// dropped and the cursor for the next page is taken from the last row kept;
// otherwise there is no next page. The next page holds rows strictly after the
// cursor: sort < cursor.sort, or sort = cursor.sort and id < cursor.id. Rows
// sharing the boundary sort value are therefore neither skipped nor repeated.
package pagination

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"fknsrs.biz/p/sorm"
	"fknsrs.biz/p/sorm/qsorm"
	sb "fknsrs.biz/p/sqlbuilder"
	"github.com/monoculum/formam"

	"fknsrs.biz/p/vidshare/internal/apierror"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Cursor[S any] struct {
	ID        string `json:"id"`
	SortValue S      `json:"sortValue"`
}

type Page[T any, S any] struct {
	Items      []T        `json:"items"`
	NextCursor *Cursor[S] `json:"nextCursor"`
}

type Request[S any] struct {
	Cursor *Cursor[S]
	Limit  int
}

func (r Request[S]) Validate() error {
	if r.Limit < 1 || r.Limit > MaxLimit {
		return apierror.New(apierror.BadRequest, "limit must be between 1 and %d", MaxLimit)
	}

	if r.Cursor != nil {
		if _, err := r.Cursor.id(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Cursor[S]) id() (int64, error) {
	id, err := strconv.ParseInt(c.ID, 10, 64)
	if err != nil {
		return 0, apierror.Wrap(apierror.BadRequest, err, "cursor id must be an integer")
	}

	return id, nil
}

// IntCursor builds a cursor from an integer row id.
func IntCursor[S any](id int, sortValue S) Cursor[S] {
	return Cursor[S]{ID: strconv.Itoa(id), SortValue: sortValue}
}

// Predicate is the condition selecting rows after cursor. A nil cursor selects
// everything and yields a nil expression.
func Predicate[S any](sortColumn, idColumn sb.AsExpr, cursor *Cursor[S]) (sb.AsExpr, error) {
	if cursor == nil {
		return nil, nil
	}

	id, err := cursor.id()
	if err != nil {
		return nil, err
	}

	return sb.BooleanOperator(
		"or",
		sb.BinaryOperator("<", sortColumn, sb.Bind(cursor.SortValue)),
		sb.BooleanOperator(
			"and",
			sb.BinaryOperator("=", sortColumn, sb.Bind(cursor.SortValue)),
			sb.BinaryOperator("<", idColumn, sb.Bind(id)),
		),
	), nil
}

func Order(sortColumn, idColumn sb.AsExpr) []sb.AsOrderingTerm {
	return []sb.AsOrderingTerm{sb.OrderDesc(sortColumn), sb.OrderDesc(idColumn)}
}

// And joins the non-nil conditions with "and". It returns nil if there are
// none.
func And(conditions ...sb.AsExpr) sb.AsExpr {
	var a []sb.AsExpr

	for _, e := range conditions {
		if e != nil {
			a = append(a, e)
		}
	}

	switch len(a) {
	case 0:
		return nil
	case 1:
		return a[0]
	default:
		return sb.BooleanOperator("and", a...)
	}
}

// Trim turns up to limit+1 fetched rows into a page.
func Trim[T any, S any](rows []T, limit int, key func(T) Cursor[S]) Page[T, S] {
	if rows == nil {
		rows = []T{}
	}

	if len(rows) <= limit {
		return Page[T, S]{Items: rows}
	}

	rows = rows[:limit]
	next := key(rows[len(rows)-1])

	return Page[T, S]{Items: rows, NextCursor: &next}
}

// Query describes one keyset-paginated list query.
type Query[T any, S any] struct {
	SortColumn sb.AsExpr
	IDColumn   sb.AsExpr
	Condition  sb.AsExpr
	Key        func(T) Cursor[S]
}

// Fetch runs q for request against db.
func Fetch[T any, S any](ctx context.Context, db sorm.Querier, q Query[T, S], request Request[S]) (*Page[T, S], error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	predicate, err := Predicate(q.SortColumn, q.IDColumn, request.Cursor)
	if err != nil {
		return nil, err
	}

	var rows []T
	if err := qsorm.FindWhere(
		ctx,
		db,
		&rows,
		And(q.Condition, predicate),
		Order(q.SortColumn, q.IDColumn),
		sb.OffsetLimit(nil, sb.Bind(request.Limit+1)),
	); err != nil {
		return nil, fmt.Errorf("pagination.Fetch: %w", err)
	}

	page := Trim(rows, request.Limit, q.Key)

	return &page, nil
}

// query string decoding

type queryParameters struct {
	CursorID        string `formam:"cursorId"`
	CursorSortValue string `formam:"cursorSortValue"`
	Limit           string `formam:"limit"`
}

var decoder = formam.NewDecoder(&formam.DecoderOptions{TagName: "formam", IgnoreUnknownKeys: true})

// FromQuery reads cursorId, cursorSortValue and limit from a query string. A
// cursor needs both parts; a missing limit is DefaultLimit.
func FromQuery[S any](values url.Values, parse func(s string) (S, error)) (Request[S], error) {
	var p queryParameters
	if err := decoder.Decode(values, &p); err != nil {
		return Request[S]{}, apierror.Wrap(apierror.BadRequest, err, "invalid pagination parameters")
	}

	request := Request[S]{Limit: DefaultLimit}

	if p.Limit != "" {
		n, err := strconv.Atoi(p.Limit)
		if err != nil {
			return Request[S]{}, apierror.Wrap(apierror.BadRequest, err, "limit must be an integer")
		}
		request.Limit = n
	}

	switch {
	case p.CursorID == "" && p.CursorSortValue == "":
	case p.CursorID == "" || p.CursorSortValue == "":
		return Request[S]{}, apierror.New(apierror.BadRequest, "cursorId and cursorSortValue must be given together")
	default:
		v, err := parse(p.CursorSortValue)
		if err != nil {
			return Request[S]{}, apierror.Wrap(apierror.BadRequest, err, "invalid cursorSortValue")
		}

		request.Cursor = &Cursor[S]{ID: p.CursorID, SortValue: v}
	}

	if err := request.Validate(); err != nil {
		return Request[S]{}, err
	}

	return request, nil
}

func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}

	return t.UTC(), nil
}

func ParseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
