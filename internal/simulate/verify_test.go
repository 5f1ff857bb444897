package simulate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/okian/wcalive/internal/domain/types"
)

func TestCompareRow(t *testing.T) {
	row := types.Row{PersonID: "p", Attempts: []int{900, 800, 700}, Best: 700, Average: 800}

	tests := []struct {
		name     string
		attempts []int
		best     int
		average  int
		fields   []string
	}{
		{"match", []int{900, 800, 700}, 700, 800, nil},
		{"attempts differ", []int{900, 800}, 700, 800, []string{"attempts"}},
		{"best differs", []int{900, 800, 700}, 600, 800, []string{"best"}},
		{"everything differs", []int{1}, 1, 1, []string{"attempts", "best", "average"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fields []string
			for _, m := range compareRow("r1", "p", row, tt.attempts, tt.best, tt.average) {
				assert.Equal(t, "r1", m.RoundID)
				fields = append(fields, m.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestCheckOrder(t *testing.T) {
	rows := func(ranks ...int) []types.Row {
		out := make([]types.Row, len(ranks))
		for i, r := range ranks {
			out[i] = types.Row{Rank: r}
		}
		return out
	}

	tests := []struct {
		name  string
		rows  []types.Row
		limit int
		want  int
	}{
		{"empty round", nil, 5, 0},
		{"ties share a rank", rows(1, 2, 2, 4), 5, 0},
		{"first rank not one", rows(2, 3), 5, 1},
		{"ranks go backwards", rows(1, 3, 2), 5, 1},
		{"too many rows", rows(1, 2, 3), 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, checkOrder("r1", tt.rows, tt.limit), tt.want)
		})
	}
}

func TestSettled(t *testing.T) {
	have := []types.Round{{RoundID: "a", Results: 3}, {RoundID: "b", Results: 1}}

	assert.True(t, settled(have, map[string]int{"a": 3}))
	assert.True(t, settled(have, map[string]int{"a": 2, "b": 1}))
	assert.False(t, settled(have, map[string]int{"a": 4}))
	assert.False(t, settled(have, map[string]int{"c": 1}))
	assert.True(t, settled(nil, nil))
}
