// Package rest builds table queries against the backend REST API.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/pkg/backend/transport"
)

// ErrMissingFilter is returned by Update, UpdateMinimal and Remove on a
// handle without an Eq filter. Nothing is sent in that case.
var ErrMissingFilter = errors.New("update and delete require a filter")

const (
	preferRepresentation = "return=representation"
	preferMinimal        = "return=minimal"
)

// TokenSource yields the bearer token for a request; "" means the anon key.
type TokenSource interface {
	AccessToken(ctx context.Context) string
}

// Client creates table queries.
type Client struct {
	transport *transport.Client
	tokens    TokenSource
	logger    *zap.Logger
}

func New(tc *transport.Client, tokens TokenSource, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{transport: tc, tokens: tokens, logger: logger}
}

// From returns a handle on table.
func (c *Client) From(table string) *Query {
	return &Query{client: c, table: table}
}

type filter struct {
	column string
	value  string
}

// Query is an immutable table expression. Builder methods return a new
// Query, so a handle can be reused as the base of several requests.
type Query struct {
	client  *Client
	table   string
	filters []filter
	columns string
}

// Table returns the table name.
func (q *Query) Table() string { return q.table }

// Eq adds an equality filter on column.
func (q *Query) Eq(column string, value any) *Query {
	next := q.clone()
	next.filters = append(next.filters, filter{column: column, value: formatValue(value)})
	return next
}

// Select sets the column list; the default is "*".
func (q *Query) Select(columns string) *Query {
	next := q.clone()
	next.columns = columns
	return next
}

func (q *Query) clone() *Query {
	next := *q
	next.filters = append([]filter(nil), q.filters...)
	return &next
}

// URL returns the address a read with the current expression would hit.
func (q *Query) URL() string {
	return q.client.transport.URL(q.path(), q.rawQuery(true, 0))
}

func (q *Query) path() string {
	return "/rest/v1/" + escape(q.table)
}

// rawQuery renders filters in insertion order, then select, then limit.
func (q *Query) rawQuery(withSelect bool, limit int) string {
	parts := make([]string, 0, len(q.filters)+2)
	for _, f := range q.filters {
		parts = append(parts, escape(f.column)+"=eq."+escape(f.value))
	}
	if withSelect || q.columns != "" {
		columns := q.columns
		if columns == "" {
			columns = "*"
		}
		parts = append(parts, "select="+escape(columns))
	}
	if limit > 0 {
		parts = append(parts, "limit="+strconv.Itoa(limit))
	}
	return strings.Join(parts, "&")
}

// Get returns every row matching the expression.
func (q *Query) Get(ctx context.Context) (Rows, error) {
	var rows Rows
	if err := q.do(ctx, "GET", q.rawQuery(true, 0), nil, "", &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = Rows{}
	}
	return rows, nil
}

// GetOne returns the first matching row, or nil when nothing matches.
func (q *Query) GetOne(ctx context.Context) (Row, error) {
	var rows Rows
	if err := q.do(ctx, "GET", q.rawQuery(true, 1), nil, "", &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Insert adds values, a struct, map or slice of either, and returns the stored rows.
func (q *Query) Insert(ctx context.Context, values any) (Rows, error) {
	var rows Rows
	if err := q.do(ctx, "POST", q.rawQuery(false, 0), values, preferRepresentation, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Update patches every matching row and returns the updated rows.
func (q *Query) Update(ctx context.Context, updates any) (Rows, error) {
	if err := q.requireFilter("PATCH"); err != nil {
		return nil, err
	}
	var rows Rows
	if err := q.do(ctx, "PATCH", q.rawQuery(false, 0), updates, preferRepresentation, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateMinimal patches every matching row without reading them back.
func (q *Query) UpdateMinimal(ctx context.Context, updates any) error {
	if err := q.requireFilter("PATCH"); err != nil {
		return err
	}
	return q.do(ctx, "PATCH", q.rawQuery(false, 0), updates, preferMinimal, nil)
}

// Remove deletes every matching row.
func (q *Query) Remove(ctx context.Context) error {
	if err := q.requireFilter("DELETE"); err != nil {
		return err
	}
	return q.do(ctx, "DELETE", q.rawQuery(false, 0), nil, "", nil)
}

func (q *Query) requireFilter(method string) error {
	if len(q.filters) > 0 {
		return nil
	}
	q.client.logger.Warn("refusing unfiltered table write",
		zap.String("table", q.table),
		zap.String("method", method))
	return domain.WrapError(domain.ErrCodeInvalid, "table "+q.table, ErrMissingFilter)
}

func (q *Query) do(ctx context.Context, method, rawQuery string, payload any, prefer string, out any) error {
	req := transport.Request{
		Service:  transport.ServiceREST,
		Method:   method,
		Path:     q.path(),
		RawQuery: rawQuery,
	}
	if q.client.tokens != nil {
		req.Bearer = q.client.tokens.AccessToken(ctx)
	}
	if prefer != "" {
		req.Header = map[string]string{"Prefer": prefer}
	}
	err := q.client.transport.JSON(ctx, req, payload, out)
	if err != nil {
		q.client.logger.Debug("table request failed",
			zap.String("table", q.table),
			zap.String("method", method),
			zap.Error(err))
	}
	return err
}

// escape percent-encodes s but keeps the characters the filter grammar
// relies on readable.
func escape(s string) string {
	return queryUnescaper.Replace(url.QueryEscape(s))
}

var queryUnescaper = strings.NewReplacer("%2A", "*", "%2C", ",", "%28", "(", "%29", ")", "%3A", ":")

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
