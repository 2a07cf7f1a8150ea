package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"schoolattend/internal/audit"
	"schoolattend/internal/store"
)

// RecordStore is the persistence surface the service mutates and reads.
type RecordStore interface {
	Insert(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	UpdateStatus(ctx context.Context, id string, status Status, modifiedBy string, modifiedAt time.Time) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q Query) ([]Record, error)
}

// AuditStore appends immutable trail entries.
type AuditStore interface {
	Insert(ctx context.Context, e audit.Entry) (audit.Entry, error)
}

// Stores bundles the two stores bound to one transaction.
type Stores struct {
	Records RecordStore
	Audits  AuditStore
}

// TxRunner runs fn with transaction-bound stores. When fn returns an error
// nothing fn did is visible afterwards. This is what makes a mutation and its
// audit entry a single unit: a failed audit write rolls the mutation back.
type TxRunner func(ctx context.Context, fn func(ctx context.Context, s Stores) error) error

// Service coordinates record mutations, the edit gate, and audit pairing.
type Service struct {
	records RecordStore
	inTx    TxRunner
	policy  EditPolicy
	now     func() time.Time
}

// NewService wires the service to Postgres-backed stores.
func NewService(db *store.DB, policy EditPolicy) *Service {
	records := NewRepository(db.Client)
	audits := audit.NewRepository(db.Client)
	runner := func(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
		return store.RunInTx(ctx, db.Client, func(ctx context.Context, tx store.Querier) error {
			return fn(ctx, Stores{Records: records.WithTx(tx), Audits: audits.WithTx(tx)})
		})
	}
	return &Service{records: records, inTx: runner, policy: policy, now: func() time.Time { return time.Now().UTC() }}
}

// NewServiceWith builds a service over caller-supplied stores and runner,
// used by tests and alternative backends.
func NewServiceWith(records RecordStore, runner TxRunner, policy EditPolicy, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{records: records, inTx: runner, policy: policy, now: now}
}

// MutationResult pairs the surviving record state with its audit entry.
type MutationResult struct {
	Record Record      `json:"record"`
	Audit  audit.Entry `json:"audit"`
}

// Mark creates one attendance record with its paired create entry.
func (s *Service) Mark(ctx context.Context, rec Record, actor string) (MutationResult, error) {
	if err := validateNew(rec); err != nil {
		return MutationResult{}, err
	}
	rec.MarkedBy = actor
	var out MutationResult
	err := s.inTx(ctx, func(ctx context.Context, st Stores) error {
		inserted, err := st.Records.Insert(ctx, rec)
		if err != nil {
			return err
		}
		entry, err := st.Audits.Insert(ctx, audit.Entry{
			RecordID:    inserted.ID,
			Action:      audit.ActionCreate,
			PerformedBy: actor,
			PerformedAt: s.now(),
			NewValues:   snapshotOf(inserted),
		})
		if err != nil {
			return err
		}
		out = MutationResult{Record: inserted, Audit: entry}
		return nil
	})
	if err != nil {
		return MutationResult{}, err
	}
	return out, nil
}

// MarkBatch creates many records in one transaction, e.g. a teacher marking a
// whole class for one session. All entries share a batch id so the trail can
// tell bulk edits apart from single ones.
func (s *Service) MarkBatch(ctx context.Context, recs []Record, actor string) ([]MutationResult, error) {
	if len(recs) == 0 {
		return nil, ErrInvalid("batch contains no records")
	}
	for _, rec := range recs {
		if err := validateNew(rec); err != nil {
			return nil, err
		}
	}
	batchID := uuid.NewString()
	var out []MutationResult
	err := s.inTx(ctx, func(ctx context.Context, st Stores) error {
		for _, rec := range recs {
			rec.MarkedBy = actor
			inserted, err := st.Records.Insert(ctx, rec)
			if err != nil {
				return err
			}
			entry, err := st.Audits.Insert(ctx, audit.Entry{
				RecordID:    inserted.ID,
				Action:      audit.ActionCreate,
				PerformedBy: actor,
				PerformedAt: s.now(),
				NewValues:   snapshotOf(inserted),
				BatchID:     batchID,
			})
			if err != nil {
				return err
			}
			out = append(out, MutationResult{Record: inserted, Audit: entry})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CheckEditPermission exposes the gate decision without mutating anything.
func (s *Service) CheckEditPermission(rec Record, asOf time.Time) Decision {
	return s.policy.Check(rec, asOf)
}

// ApplyEdit changes a record's status through the edit gate, pairing the
// update with exactly one audit entry.
func (s *Service) ApplyEdit(ctx context.Context, id string, newStatus Status, actor, reason string) (MutationResult, error) {
	if !newStatus.Valid() {
		return MutationResult{}, ErrInvalid("status %q is not one of present/absent/late/excused", newStatus)
	}
	now := s.now()
	var out MutationResult
	err := s.inTx(ctx, func(ctx context.Context, st Stores) error {
		before, err := st.Records.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(before, now, reason); err != nil {
			return err
		}
		if err := st.Records.UpdateStatus(ctx, id, newStatus, actor, now); err != nil {
			return err
		}
		after := before
		after.Status = newStatus
		after.MarkedBy = actor
		after.LastModifiedAt = now
		entry, err := st.Audits.Insert(ctx, audit.Entry{
			RecordID:    id,
			Action:      audit.ActionUpdate,
			PerformedBy: actor,
			PerformedAt: now,
			OldValues:   snapshotOf(before),
			NewValues:   snapshotOf(after),
			Reason:      reason,
		})
		if err != nil {
			return err
		}
		out = MutationResult{Record: after, Audit: entry}
		return nil
	})
	if err != nil {
		return MutationResult{}, err
	}
	return out, nil
}

// Remove deletes a record through the edit gate; the audit entry outlives it.
func (s *Service) Remove(ctx context.Context, id, actor, reason string) (audit.Entry, error) {
	now := s.now()
	var out audit.Entry
	err := s.inTx(ctx, func(ctx context.Context, st Stores) error {
		before, err := st.Records.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(before, now, reason); err != nil {
			return err
		}
		if err := st.Records.Delete(ctx, id); err != nil {
			return err
		}
		entry, err := st.Audits.Insert(ctx, audit.Entry{
			RecordID:    id,
			Action:      audit.ActionDelete,
			PerformedBy: actor,
			PerformedAt: now,
			OldValues:   snapshotOf(before),
			Reason:      reason,
		})
		if err != nil {
			return err
		}
		out = entry
		return nil
	})
	if err != nil {
		return audit.Entry{}, err
	}
	return out, nil
}

// SubjectSummary is one subject's slice of a student summary.
type SubjectSummary struct {
	SubjectID string  `json:"subject_id"`
	Summary   Summary `json:"summary"`
}

// StudentSummary is the per-subject breakdown plus the overall rollup for one
// student over a date range.
type StudentSummary struct {
	StudentID string           `json:"student_id"`
	Subjects  []SubjectSummary `json:"subjects"`
	Overall   Summary          `json:"overall"`
}

// StudentSummary recomputes a student's summaries from raw records. Nothing
// is cached: freshness over CPU.
func (s *Service) StudentSummary(ctx context.Context, studentID string, from, to time.Time) (StudentSummary, error) {
	if studentID == "" {
		return StudentSummary{}, ErrInvalid("student id is required")
	}
	records, err := s.records.List(ctx, Query{StudentID: studentID, From: from, To: to})
	if err != nil {
		return StudentSummary{}, ErrDataUnavailable("listing records for student %s: %v", studentID, err)
	}
	bySubject := map[string][]Record{}
	order := []string{}
	for _, rec := range records {
		if _, seen := bySubject[rec.SubjectID]; !seen {
			order = append(order, rec.SubjectID)
		}
		bySubject[rec.SubjectID] = append(bySubject[rec.SubjectID], rec)
	}

	out := StudentSummary{StudentID: studentID}
	perSubject := make([]Summary, 0, len(order))
	for _, subjectID := range order {
		sum, err := Aggregate(bySubject[subjectID])
		if err != nil {
			return StudentSummary{}, err
		}
		out.Subjects = append(out.Subjects, SubjectSummary{SubjectID: subjectID, Summary: sum})
		perSubject = append(perSubject, sum)
	}
	out.Overall = Rollup(perSubject...)
	return out, nil
}

// ClassSummary aggregates one class over a date range.
func (s *Service) ClassSummary(ctx context.Context, classID string, from, to time.Time) (Summary, error) {
	if classID == "" {
		return Summary{}, ErrInvalid("class id is required")
	}
	records, err := s.records.List(ctx, Query{ClassID: classID, From: from, To: to})
	if err != nil {
		return Summary{}, ErrDataUnavailable("listing records for class %s: %v", classID, err)
	}
	return Aggregate(records)
}

// ListRecords passes a filtered listing through to the store.
func (s *Service) ListRecords(ctx context.Context, q Query) ([]Record, error) {
	records, err := s.records.List(ctx, q)
	if err != nil {
		return nil, ErrDataUnavailable("listing records: %v", err)
	}
	return records, nil
}

func validateNew(rec Record) error {
	switch {
	case rec.StudentID == "":
		return ErrInvalid("student id is required")
	case rec.ClassID == "":
		return ErrInvalid("class id is required")
	case rec.SubjectID == "":
		return ErrInvalid("subject id is required")
	case rec.Session == "":
		return ErrInvalid("session label is required")
	case rec.Date.IsZero():
		return ErrInvalid("date is required")
	case !rec.Status.Valid():
		return ErrInvalid("status %q is not one of present/absent/late/excused", rec.Status)
	}
	return nil
}

func snapshotOf(rec Record) *audit.Snapshot {
	return &audit.Snapshot{
		Status:   string(rec.Status),
		Session:  rec.Session,
		MarkedBy: rec.MarkedBy,
	}
}
