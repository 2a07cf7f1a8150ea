package attendance

import "time"

// DefaultEditWindowDays is how long a record stays freely editable.
const DefaultEditWindowDays = 7

// Decision is the outcome of the edit gate for one record.
type Decision struct {
	Allowed        bool `json:"allowed"`
	RequiresReason bool `json:"requires_reason"`
}

// EditPolicy gates mutations on record age. Reads (view/export) are never
// gated; only update and delete pass through here.
type EditPolicy struct {
	WindowDays int
}

// NewEditPolicy returns a policy with the given window, falling back to the
// default when days is not positive.
func NewEditPolicy(days int) EditPolicy {
	if days <= 0 {
		days = DefaultEditWindowDays
	}
	return EditPolicy{WindowDays: days}
}

// Check evaluates the gate for rec as of the given instant. Age is measured
// in whole calendar days; a record exactly WindowDays old is still freely
// editable. Older records stay editable but require a supplied reason.
func (p EditPolicy) Check(rec Record, asOf time.Time) Decision {
	age := daysBetween(rec.Date, asOf)
	if age <= p.WindowDays {
		return Decision{Allowed: true, RequiresReason: false}
	}
	return Decision{Allowed: true, RequiresReason: true}
}

// Authorize applies the decision to a concrete edit attempt. A restricted
// record with no reason is the one hard denial the core enforces.
func (p EditPolicy) Authorize(rec Record, asOf time.Time, reason string) error {
	d := p.Check(rec, asOf)
	if d.RequiresReason && reason == "" {
		return ErrPermissionDenied("record %s is older than %d days; a reason is required", rec.ID, p.WindowDays)
	}
	return nil
}

// daysBetween counts whole calendar days from a to b, ignoring clock time.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	end := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start) / (24 * time.Hour))
}
