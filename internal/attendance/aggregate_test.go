package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(status Status, n int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{ID: "r", Status: status}
	}
	return out
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		want    Summary
	}{
		{
			name:    "empty input is zero not error",
			records: nil,
			want:    Summary{},
		},
		{
			name:    "all present",
			records: records(StatusPresent, 4),
			want:    Summary{TotalSessions: 4, PresentCount: 4, Percentage: 100},
		},
		{
			name: "mixed statuses",
			records: append(append(append(
				records(StatusPresent, 6),
				records(StatusAbsent, 2)...),
				records(StatusLate, 1)...),
				records(StatusExcused, 1)...),
			want: Summary{TotalSessions: 10, PresentCount: 6, AbsentCount: 2, LateCount: 1, ExcusedCount: 1, Percentage: 60},
		},
		{
			name:    "late and excused excluded from numerator",
			records: append(records(StatusLate, 3), records(StatusExcused, 1)...),
			want:    Summary{TotalSessions: 4, LateCount: 3, ExcusedCount: 1, Percentage: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Aggregate(tt.records)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.TotalSessions, got.PresentCount+got.AbsentCount+got.LateCount+got.ExcusedCount)
			assert.GreaterOrEqual(t, got.Percentage, 0.0)
			assert.LessOrEqual(t, got.Percentage, 100.0)
		})
	}
}

func TestAggregateUnknownStatus(t *testing.T) {
	_, err := Aggregate([]Record{{ID: "bad-1", Status: "vanished"}})
	require.Error(t, err)
	assert.Equal(t, CodeDataIntegrity, CodeOf(err))
	assert.Contains(t, err.Error(), "bad-1")
}

func TestRollupSumsBeforeDividing(t *testing.T) {
	// Subject A: 4 of 4 present (100%). Subject B: 5 of 20 present (25%).
	// Correct overall is 9/24 = 37.5; averaging the percentages would give
	// 62.5 and misweight the small subject.
	a, err := Aggregate(records(StatusPresent, 4))
	require.NoError(t, err)
	b, err := Aggregate(append(records(StatusPresent, 5), records(StatusAbsent, 15)...))
	require.NoError(t, err)

	overall := Rollup(a, b)
	assert.Equal(t, 24, overall.TotalSessions)
	assert.Equal(t, 9, overall.PresentCount)
	assert.InDelta(t, 37.5, overall.Percentage, 1e-9)
}

func TestRollupEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, Rollup())
}
