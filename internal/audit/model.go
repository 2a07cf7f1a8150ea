package audit

import "time"

// Action is the kind of event an entry records.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionView   Action = "view"
	ActionExport Action = "export"
)

// Severity is derived from an entry at read time, never stored.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Snapshot captures the mutable fields of a record at one point in time.
// Nil means "no state on that side": create has no old, delete has no new.
type Snapshot struct {
	Status   string `json:"status"`
	Session  string `json:"session,omitempty"`
	MarkedBy string `json:"marked_by,omitempty"`
}

// Entry is one immutable line in the audit trail. Entries are append-only:
// the repository exposes no update or delete path.
type Entry struct {
	ID          string    `json:"id"`
	RecordID    string    `json:"record_id"`
	Action      Action    `json:"action"`
	PerformedBy string    `json:"performed_by"`
	PerformedAt time.Time `json:"performed_at"`
	OldValues   *Snapshot `json:"old_values,omitempty"`
	NewValues   *Snapshot `json:"new_values,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	BatchID     string    `json:"batch_id,omitempty"`
}

// DeriveSeverity classifies an entry for presentation. Deletes are always
// high. Updates rate medium when the status actually changed or the entry
// belongs to a bulk operation; everything else is low.
func DeriveSeverity(e Entry) Severity {
	switch e.Action {
	case ActionDelete:
		return SeverityHigh
	case ActionUpdate:
		if e.BatchID != "" {
			return SeverityMedium
		}
		if e.OldValues != nil && e.NewValues != nil && e.OldValues.Status != e.NewValues.Status {
			return SeverityMedium
		}
		return SeverityLow
	default:
		return SeverityLow
	}
}

// Filter narrows a trail listing. Zero values mean "no constraint".
type Filter struct {
	From   time.Time
	To     time.Time
	Actor  string
	Action Action
	Search string
	Limit  int
	Offset int
}

const (
	// DefaultPageLimit bounds unpaginated listings; the trail only grows.
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)
