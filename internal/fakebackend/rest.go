package fakebackend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// Row is one table record.
type Row = map[string]any

type filter struct {
	column string
	value  string
}

type selectItem struct {
	star   bool
	column string
	alias  string
	embed  []selectItem
}

type tableQuery struct {
	filters []filter
	columns []selectItem
	limit   int
}

// DefineTable creates an empty table if it does not exist.
func (s *Server) DefineTable(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; !ok {
		s.tables[name] = nil
	}
}

// Seed appends rows to table, creating it when missing. Rows without an id get one.
func (s *Server) Seed(table string, rows ...Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[table]; !ok {
		s.tables[table] = nil
	}
	for _, r := range rows {
		s.tables[table] = append(s.tables[table], s.prepareRowLocked(r))
	}
}

// Rows returns a copy of every row in table.
func (s *Server) Rows(table string) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		out = append(out, cloneRow(r))
	}
	return out
}

func (s *Server) prepareRowLocked(r Row) Row {
	row := cloneRow(r)
	if id, ok := row["id"]; !ok || id == nil || id == "" {
		row["id"] = uuid.NewString()
	}
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = s.now().UTC().Format(time.RFC3339Nano)
	}
	return row
}

// restPreamble checks credentials and resolves the table. It writes the
// error response itself and reports whether the handler may continue.
func (s *Server) restPreamble(ctx *fasthttp.RequestCtx) (string, tableQuery, bool) {
	if !s.checkAPIKey(ctx) {
		respondJSON(ctx, fasthttp.StatusUnauthorized, map[string]string{
			"message": "Invalid API key",
			"hint":    "Double check your Supabase `anon` or `service_role` API key.",
		})
		return "", tableQuery{}, false
	}
	if _, err := s.authenticate(ctx); err != nil {
		respondRESTError(ctx, fasthttp.StatusUnauthorized, "PGRST301", err.Error())
		return "", tableQuery{}, false
	}

	table, _ := ctx.UserValue("table").(string)
	s.mu.Lock()
	_, exists := s.tables[table]
	s.mu.Unlock()
	if !exists {
		respondRESTError(ctx, fasthttp.StatusNotFound, "42P01", fmt.Sprintf("relation \"public.%s\" does not exist", table))
		return "", tableQuery{}, false
	}

	q, err := parseTableQuery(ctx.QueryArgs())
	if err != nil {
		respondRESTError(ctx, fasthttp.StatusBadRequest, "PGRST100", err.Error())
		return "", tableQuery{}, false
	}
	return table, q, true
}

func parseTableQuery(args *fasthttp.Args) (tableQuery, error) {
	var (
		q   tableQuery
		err error
	)
	args.VisitAll(func(k, v []byte) {
		if err != nil {
			return
		}
		key, val := string(k), string(v)
		switch key {
		case "select":
			q.columns, err = parseSelect(val)
		case "limit":
			q.limit, err = strconv.Atoi(val)
			if err == nil && q.limit < 0 {
				err = fmt.Errorf("invalid limit %q", val)
			}
		case "order", "offset":
			// accepted and ignored
		default:
			op, operand, ok := strings.Cut(val, ".")
			if !ok || op != "eq" {
				err = fmt.Errorf("unsupported filter %s=%s", key, val)
				return
			}
			q.filters = append(q.filters, filter{column: key, value: operand})
		}
	})
	return q, err
}

func parseSelect(expr string) ([]selectItem, error) {
	var items []selectItem
	for _, part := range splitTopLevel(expr) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "*" {
			items = append(items, selectItem{star: true})
			continue
		}
		if open := strings.IndexByte(part, '('); open >= 0 {
			if !strings.HasSuffix(part, ")") {
				return nil, fmt.Errorf("unbalanced select %q", part)
			}
			inner, err := parseSelect(part[open+1 : len(part)-1])
			if err != nil {
				return nil, err
			}
			name := strings.TrimSpace(part[:open])
			items = append(items, selectItem{column: name, alias: name, embed: inner})
			continue
		}
		alias, column, ok := strings.Cut(part, ":")
		if !ok {
			column = alias
		}
		items = append(items, selectItem{column: column, alias: alias})
	}
	return items, nil
}

func splitTopLevel(expr string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i, r := range expr {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, expr[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, expr[start:])
}

func (q tableQuery) matches(row Row) bool {
	for _, f := range q.filters {
		v, ok := row[f.column]
		if !ok || valueString(v) != f.value {
			return false
		}
	}
	return true
}

// projectLocked must be called with s.mu held.
func (s *Server) projectLocked(row Row, items []selectItem) Row {
	if len(items) == 0 {
		return cloneRow(row)
	}
	out := make(Row, len(row))
	for _, item := range items {
		switch {
		case item.star:
			for k, v := range row {
				out[k] = v
			}
		case item.embed != nil:
			out[item.alias] = s.embedLocked(item, row)
		default:
			out[item.alias] = row[item.column]
		}
	}
	return out
}

// embedLocked resolves a to-one relation through the <singular>_id column.
func (s *Server) embedLocked(item selectItem, row Row) any {
	fk := strings.TrimSuffix(item.column, "s") + "_id"
	ref, ok := row[fk]
	if !ok || ref == nil {
		return nil
	}
	for _, target := range s.tables[item.column] {
		if valueString(target["id"]) == valueString(ref) {
			return s.projectLocked(target, item.embed)
		}
	}
	return nil
}

func (s *Server) selectRows(ctx *fasthttp.RequestCtx) {
	table, q, ok := s.restPreamble(ctx)
	if !ok {
		return
	}
	s.mu.Lock()
	out := make([]Row, 0)
	for _, row := range s.tables[table] {
		if !q.matches(row) {
			continue
		}
		out = append(out, s.projectLocked(row, q.columns))
		if q.limit > 0 && len(out) >= q.limit {
			break
		}
	}
	s.mu.Unlock()
	respondJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) insertRows(ctx *fasthttp.RequestCtx) {
	table, q, ok := s.restPreamble(ctx)
	if !ok {
		return
	}
	rows, err := decodeRows(ctx.PostBody())
	if err != nil {
		respondRESTError(ctx, fasthttp.StatusBadRequest, "PGRST102", "Empty or invalid json")
		return
	}

	s.mu.Lock()
	inserted := make([]Row, 0, len(rows))
	for _, r := range rows {
		row := s.prepareRowLocked(r)
		for _, existing := range s.tables[table] {
			if valueString(existing["id"]) == valueString(row["id"]) {
				s.mu.Unlock()
				respondRESTError(ctx, fasthttp.StatusConflict, "23505",
					fmt.Sprintf("duplicate key value violates unique constraint \"%s_pkey\"", table))
				return
			}
		}
		inserted = append(inserted, row)
	}
	s.tables[table] = append(s.tables[table], inserted...)
	out := make([]Row, 0, len(inserted))
	for _, row := range inserted {
		out = append(out, s.projectLocked(row, q.columns))
	}
	s.mu.Unlock()

	if wantsRepresentation(ctx) {
		respondJSON(ctx, fasthttp.StatusCreated, out)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusCreated)
}

func (s *Server) updateRows(ctx *fasthttp.RequestCtx) {
	table, q, ok := s.restPreamble(ctx)
	if !ok {
		return
	}
	var patch Row
	if err := json.Unmarshal(ctx.PostBody(), &patch); err != nil || patch == nil {
		respondRESTError(ctx, fasthttp.StatusBadRequest, "PGRST102", "Empty or invalid json")
		return
	}

	s.mu.Lock()
	out := make([]Row, 0)
	for _, row := range s.tables[table] {
		if !q.matches(row) {
			continue
		}
		for k, v := range patch {
			row[k] = v
		}
		out = append(out, s.projectLocked(row, q.columns))
	}
	s.mu.Unlock()

	if wantsRepresentation(ctx) {
		respondJSON(ctx, fasthttp.StatusOK, out)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) deleteRows(ctx *fasthttp.RequestCtx) {
	table, q, ok := s.restPreamble(ctx)
	if !ok {
		return
	}

	s.mu.Lock()
	kept := s.tables[table][:0]
	removed := make([]Row, 0)
	for _, row := range s.tables[table] {
		if q.matches(row) {
			removed = append(removed, s.projectLocked(row, q.columns))
			continue
		}
		kept = append(kept, row)
	}
	s.tables[table] = kept
	s.mu.Unlock()

	if wantsRepresentation(ctx) {
		respondJSON(ctx, fasthttp.StatusOK, removed)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func wantsRepresentation(ctx *fasthttp.RequestCtx) bool {
	return bytes.Contains(ctx.Request.Header.Peek("Prefer"), []byte("return=representation"))
}

func decodeRows(body []byte) ([]Row, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	if body[0] == '[' {
		var rows []Row
		err := json.Unmarshal(body, &rows)
		return rows, err
	}
	var row Row
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, err
	}
	return []Row{row}, nil
}

func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
