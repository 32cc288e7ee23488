package rest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortBy(t *testing.T) {
	rows := Rows{
		{"id": "a", "created_at": "2024-01-02T00:00:00Z", "rating": 3.0},
		{"id": "b", "created_at": "2024-01-03T00:00:00Z", "rating": 10.0},
		{"id": "c"},
		{"id": "d", "created_at": "2024-01-01T00:00:00Z", "rating": 1.0},
	}

	ids := func(rs Rows) []string {
		out := make([]string, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.String("id"))
		}
		return out
	}

	assert.Equal(t, []string{"b", "a", "d", "c"}, ids(rows.Order("created_at", false)))
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids(SortBy(rows, "created_at", true)))
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids(SortBy(rows, "rating", true)), "numbers compare numerically")
	assert.Equal(t, "a", rows[0].String("id"), "input left untouched")
}

func TestDecode(t *testing.T) {
	type place struct {
		ID     string  `json:"id"`
		Rating float64 `json:"rating"`
	}
	var out []place
	require.NoError(t, Rows{{"id": "p1", "rating": 4.5}}.Decode(&out))
	assert.Equal(t, []place{{ID: "p1", Rating: 4.5}}, out)

	var one place
	require.NoError(t, Row{"id": "p2"}.Decode(&one))
	assert.Equal(t, "p2", one.ID)
}
