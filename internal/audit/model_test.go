package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveSeverity(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  Severity
	}{
		{
			name:  "delete is always high",
			entry: Entry{Action: ActionDelete, OldValues: &Snapshot{Status: "present"}},
			want:  SeverityHigh,
		},
		{
			name:  "create is low",
			entry: Entry{Action: ActionCreate, NewValues: &Snapshot{Status: "present"}},
			want:  SeverityLow,
		},
		{
			name: "status-changing update is medium",
			entry: Entry{
				Action:    ActionUpdate,
				OldValues: &Snapshot{Status: "present"},
				NewValues: &Snapshot{Status: "absent"},
			},
			want: SeverityMedium,
		},
		{
			name: "no-op status update is low",
			entry: Entry{
				Action:    ActionUpdate,
				OldValues: &Snapshot{Status: "present", MarkedBy: "t1"},
				NewValues: &Snapshot{Status: "present", MarkedBy: "t2"},
			},
			want: SeverityLow,
		},
		{
			name: "bulk update is medium even without a status change",
			entry: Entry{
				Action:    ActionUpdate,
				OldValues: &Snapshot{Status: "present"},
				NewValues: &Snapshot{Status: "present"},
				BatchID:   "batch-1",
			},
			want: SeverityMedium,
		},
		{
			name:  "view is low",
			entry: Entry{Action: ActionView},
			want:  SeverityLow,
		},
		{
			name:  "export is low",
			entry: Entry{Action: ActionExport},
			want:  SeverityLow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveSeverity(tt.entry))
		})
	}
}

func TestAccessEventRoundTrip(t *testing.T) {
	event := AccessEvent{
		Action:      ActionExport,
		PerformedBy: "admin-1",
		PerformedAt: time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC),
		Detail:      "from=2026-04-01&to=2026-04-10",
	}
	msg, err := event.ToMessage()
	require.NoError(t, err)
	assert.Equal(t, MessageTypeAccess, msg.Type)

	decoded, err := AccessEventFromMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, event, decoded)

	entry := decoded.Entry()
	assert.Equal(t, ActionExport, entry.Action)
	assert.Equal(t, "admin-1", entry.PerformedBy)
	assert.Equal(t, event.Detail, entry.Reason)
	assert.Nil(t, entry.OldValues)
	assert.Nil(t, entry.NewValues)
}

func TestAccessEventRejectsMutationActions(t *testing.T) {
	_, err := AccessEvent{Action: ActionDelete, PerformedBy: "x"}.ToMessage()
	require.Error(t, err)
}
