package rest

import (
	"encoding/json"
	"sort"
	"strings"
)

// Row is one record keyed by column.
type Row map[string]any

// Rows is a result set in backend order.
type Rows []Row

// Decode converts the row into v through its JSON form.
func (r Row) Decode(v any) error {
	return decodeVia(r, v)
}

// Decode converts the rows into v, typically a pointer to a slice of structs.
func (r Rows) Decode(v any) error {
	return decodeVia(r, v)
}

// String returns the column as a string, or "" when absent or not a string.
func (r Row) String(column string) string {
	s, _ := r[column].(string)
	return s
}

// Order returns a sorted copy of the rows; see SortBy.
func (r Rows) Order(column string, ascending bool) Rows {
	return SortBy(r, column, ascending)
}

// SortBy returns a copy of rows ordered by column. Numbers compare
// numerically, everything else as text; rows missing the column sort last.
func SortBy(rows Rows, column string, ascending bool) Rows {
	out := append(Rows(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := out[i][column]
		b, bok := out[j][column]
		if !aok || a == nil {
			return false
		}
		if !bok || b == nil {
			return true
		}
		c := compare(a, b)
		if ascending {
			return c < 0
		}
		return c > 0
	})
	return out
}

func compare(a, b any) int {
	af, aNum := a.(float64)
	bf, bNum := b.(float64)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(formatValue(a), formatValue(b))
}

func decodeVia(src, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
