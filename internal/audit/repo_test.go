package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterNormalize(t *testing.T) {
	tests := []struct {
		name       string
		in         Filter
		wantLimit  int
		wantOffset int
	}{
		{"zero limit gets default", Filter{}, DefaultPageLimit, 0},
		{"negative limit gets default", Filter{Limit: -5}, DefaultPageLimit, 0},
		{"limit within bounds kept", Filter{Limit: 25, Offset: 100}, 25, 100},
		{"oversized limit clamped", Filter{Limit: 1000}, MaxPageLimit, 0},
		{"negative offset floored", Filter{Limit: 10, Offset: -1}, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.normalize()
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, tt.wantOffset, got.Offset)
		})
	}
}

func TestFilterSQL(t *testing.T) {
	from := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 30, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name      string
		in        Filter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "empty filter has no clause",
			in:        Filter{},
			wantWhere: "",
			wantArgs:  []any{},
		},
		{
			name:      "date range",
			in:        Filter{From: from, To: to},
			wantWhere: " WHERE performed_at >= $1 AND performed_at <= $2",
			wantArgs:  []any{from, to},
		},
		{
			name:      "actor only",
			in:        Filter{Actor: "tch-1"},
			wantWhere: " WHERE performed_by = $1",
			wantArgs:  []any{"tch-1"},
		},
		{
			name:      "action only",
			in:        Filter{Action: ActionDelete},
			wantWhere: " WHERE action = $1",
			wantArgs:  []any{"delete"},
		},
		{
			name: "search reuses one placeholder across columns",
			in:   Filter{Search: "late"},
			wantWhere: " WHERE (action ILIKE $1 OR performed_by ILIKE $1" +
				" OR record_id ILIKE $1 OR COALESCE(reason,'') ILIKE $1)",
			wantArgs: []any{"%late%"},
		},
		{
			name: "all conditions numbered in order",
			in:   Filter{From: from, To: to, Actor: "tch-1", Action: ActionUpdate, Search: "sick"},
			wantWhere: " WHERE performed_at >= $1 AND performed_at <= $2" +
				" AND performed_by = $3 AND action = $4" +
				" AND (action ILIKE $5 OR performed_by ILIKE $5" +
				" OR record_id ILIKE $5 OR COALESCE(reason,'') ILIKE $5)",
			wantArgs: []any{from, to, "tch-1", "update", "%sick%"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := filterSQL(tt.in)
			assert.Equal(t, tt.wantWhere, where)
			require.Equal(t, len(tt.wantArgs), len(args))
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
