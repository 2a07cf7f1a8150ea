package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditPolicyCheck(t *testing.T) {
	policy := NewEditPolicy(7)
	now := time.Date(2026, 3, 20, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		recordDate time.Time
		want       Decision
	}{
		{
			name:       "same day",
			recordDate: time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
			want:       Decision{Allowed: true, RequiresReason: false},
		},
		{
			name:       "exactly 7 days old stays freely editable",
			recordDate: time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
			want:       Decision{Allowed: true, RequiresReason: false},
		},
		{
			name:       "8 days old requires a reason",
			recordDate: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
			want:       Decision{Allowed: true, RequiresReason: true},
		},
		{
			name:       "clock time within the boundary day is ignored",
			recordDate: time.Date(2026, 3, 13, 23, 59, 0, 0, time.UTC),
			want:       Decision{Allowed: true, RequiresReason: false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Check(Record{ID: "rec", Date: tt.recordDate}, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEditPolicyAuthorize(t *testing.T) {
	policy := NewEditPolicy(7)
	now := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)
	old := Record{ID: "rec-9", Date: now.AddDate(0, 0, -8)}

	err := policy.Authorize(old, now, "")
	require.Error(t, err)
	assert.Equal(t, CodePermissionDenied, CodeOf(err))
	assert.Contains(t, err.Error(), "rec-9")

	assert.NoError(t, policy.Authorize(old, now, "marked wrong student"))

	recent := Record{ID: "rec-1", Date: now.AddDate(0, 0, -2)}
	assert.NoError(t, policy.Authorize(recent, now, ""))
}

func TestNewEditPolicyDefault(t *testing.T) {
	assert.Equal(t, DefaultEditWindowDays, NewEditPolicy(0).WindowDays)
	assert.Equal(t, 14, NewEditPolicy(14).WindowDays)
}
