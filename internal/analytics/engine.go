package analytics

import (
	"context"
	"sort"
	"time"

	"schoolattend/internal/attendance"
	"schoolattend/internal/directory"
)

const (
	// LowAttendanceThreshold is the percentage below which a student lands
	// on the watchlist.
	LowAttendanceThreshold = 75.0

	// weeklyBucketAboveDays caps the trend series length: windows longer
	// than this many days bucket weekly instead of daily.
	weeklyBucketAboveDays = 90

	// maxWindowRecords bounds a single analytics query.
	maxWindowRecords = 250000

	dateLayout = "2006-01-02"
)

// RecordSource supplies the raw records an analytics query runs over.
type RecordSource interface {
	List(ctx context.Context, q attendance.Query) ([]attendance.Record, error)
}

// StudentDirectory resolves student ids to names for the watchlist.
type StudentDirectory interface {
	Students(ctx context.Context, ids []string) (map[string]directory.Student, error)
}

// Engine computes analytics snapshots from raw records. It holds no state
// between calls; an optional cache memoizes whole snapshots.
type Engine struct {
	source RecordSource
	dir    StudentDirectory
	cache  *SnapshotCache
	now    func() time.Time
}

// NewEngine creates an engine. dir and cache may be nil; without a directory
// the watchlist carries ids only, without a cache every call recomputes.
func NewEngine(source RecordSource, dir StudentDirectory, cache *SnapshotCache) *Engine {
	return &Engine{source: source, dir: dir, cache: cache, now: func() time.Time { return time.Now().UTC() }}
}

// Compute builds a snapshot for one school over window, optionally narrowed
// by filters. A failed store query is surfaced as DATA_UNAVAILABLE, never as
// a zero-filled snapshot, so callers can tell "no data" from "query failed".
func (e *Engine) Compute(ctx context.Context, schoolID string, window Window, filters Filters) (Snapshot, error) {
	if window.From.IsZero() || window.To.IsZero() {
		return Snapshot{}, attendance.ErrInvalid("analytics window requires both from and to dates")
	}
	if window.To.Before(window.From) {
		return Snapshot{}, attendance.ErrInvalid("analytics window end precedes start")
	}

	if e.cache != nil {
		if snap, ok := e.cache.Get(ctx, schoolID, window, filters); ok {
			return snap, nil
		}
	}

	records, err := e.fetch(ctx, window, filters)
	if err != nil {
		return Snapshot{}, attendance.ErrDataUnavailable(
			"analytics query failed for school %s window %s..%s: %v",
			schoolID, window.From.Format(dateLayout), window.To.Format(dateLayout), err)
	}

	perStudent, err := studentSummaries(records)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		SchoolID:   schoolID,
		Window:     window,
		Filters:    filters,
		ComputedAt: e.now(),
	}
	snap.Overview, err = e.overview(ctx, perStudent, records, window, filters)
	if err != nil {
		return Snapshot{}, err
	}
	if snap.Charts.ClassWise, err = breakdown(records, func(r attendance.Record) string { return r.ClassID }); err != nil {
		return Snapshot{}, err
	}
	if snap.Charts.SubjectWise, err = breakdown(records, func(r attendance.Record) string { return r.SubjectID }); err != nil {
		return Snapshot{}, err
	}
	snap.Charts.Trend = trendSeries(records, window)
	snap.Charts.Distribution = distribution(perStudent)
	if snap.Charts.LowAttendanceStudents, err = e.watchlist(ctx, perStudent); err != nil {
		return Snapshot{}, err
	}

	if e.cache != nil {
		e.cache.Set(ctx, schoolID, window, filters, snap)
	}
	return snap, nil
}

func (e *Engine) fetch(ctx context.Context, window Window, filters Filters) ([]attendance.Record, error) {
	return e.source.List(ctx, attendance.Query{
		ClassID:   filters.ClassID,
		SubjectID: filters.SubjectID,
		TeacherID: filters.TeacherID,
		Status:    filters.Status,
		From:      window.From,
		To:        window.To,
		Limit:     maxWindowRecords,
	})
}

// studentSummaries rolls every student's records up into one summary each.
func studentSummaries(records []attendance.Record) (map[string]attendance.Summary, error) {
	grouped := map[string][]attendance.Record{}
	for _, rec := range records {
		grouped[rec.StudentID] = append(grouped[rec.StudentID], rec)
	}
	out := make(map[string]attendance.Summary, len(grouped))
	for studentID, recs := range grouped {
		sum, err := attendance.Aggregate(recs)
		if err != nil {
			return nil, err
		}
		out[studentID] = sum
	}
	return out, nil
}

// meanPercentage is the mean of per-student overall percentages. The
// per-student numbers come from sum-then-divide rollups; only the final
// population mean is an average of percentages, as the dashboards define it.
func meanPercentage(perStudent map[string]attendance.Summary) float64 {
	if len(perStudent) == 0 {
		return 0
	}
	var total float64
	for _, sum := range perStudent {
		total += sum.Percentage
	}
	return total / float64(len(perStudent))
}

func (e *Engine) overview(ctx context.Context, perStudent map[string]attendance.Summary, records []attendance.Record, window Window, filters Filters) (Overview, error) {
	classes := map[string]struct{}{}
	for _, rec := range records {
		classes[rec.ClassID] = struct{}{}
	}

	low := 0
	for _, sum := range perStudent {
		if sum.Percentage < LowAttendanceThreshold {
			low++
		}
	}

	avg := meanPercentage(perStudent)

	// Trend compares against the equal-length window immediately before.
	prevTo := window.From.AddDate(0, 0, -1)
	prevFrom := prevTo.AddDate(0, 0, -(window.Days() - 1))
	prevRecords, err := e.fetch(ctx, Window{From: prevFrom, To: prevTo}, filters)
	if err != nil {
		return Overview{}, attendance.ErrDataUnavailable(
			"analytics trend query failed for window %s..%s: %v",
			prevFrom.Format(dateLayout), prevTo.Format(dateLayout), err)
	}
	prevPerStudent, err := studentSummaries(prevRecords)
	if err != nil {
		return Overview{}, err
	}

	return Overview{
		TotalStudents:      len(perStudent),
		AverageAttendance:  avg,
		AttendanceTrend:    avg - meanPercentage(prevPerStudent),
		LowAttendanceCount: low,
		TotalClasses:       len(classes),
	}, nil
}

// breakdown groups records by key and aggregates each group, sorted by label
// for stable chart rendering.
func breakdown(records []attendance.Record, key func(attendance.Record) string) ([]ChartPoint, error) {
	grouped := map[string][]attendance.Record{}
	for _, rec := range records {
		grouped[key(rec)] = append(grouped[key(rec)], rec)
	}
	out := make([]ChartPoint, 0, len(grouped))
	for label, recs := range grouped {
		sum, err := attendance.Aggregate(recs)
		if err != nil {
			return nil, err
		}
		out = append(out, ChartPoint{Label: label, Percentage: sum.Percentage})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// trendSeries partitions the window into buckets and computes the rollup
// percentage per bucket. Buckets with no records are emitted with percentage
// zero so the series stays contiguous for charting.
func trendSeries(records []attendance.Record, window Window) []TrendPoint {
	bucketDays := 1
	if window.Days() > weeklyBucketAboveDays {
		bucketDays = 7
	}
	buckets := (window.Days() + bucketDays - 1) / bucketDays

	present := make([]int, buckets)
	total := make([]int, buckets)
	for _, rec := range records {
		idx := int(rec.Date.Sub(window.From)/(24*time.Hour)) / bucketDays
		if idx < 0 || idx >= buckets {
			continue
		}
		total[idx]++
		if rec.Status == attendance.StatusPresent {
			present[idx]++
		}
	}

	out := make([]TrendPoint, buckets)
	for i := 0; i < buckets; i++ {
		pt := TrendPoint{Date: window.From.AddDate(0, 0, i*bucketDays).Format(dateLayout)}
		if total[i] > 0 {
			pt.Percentage = float64(present[i]) / float64(total[i]) * 100
		}
		out[i] = pt
	}
	return out
}

// distribution buckets students into the four dashboard bands. Students with
// no sessions are not counted anywhere.
func distribution(perStudent map[string]attendance.Summary) []DistributionBand {
	bands := []DistributionBand{
		{Band: BandExcellent},
		{Band: BandGood},
		{Band: BandWarning},
		{Band: BandCritical},
	}
	for _, sum := range perStudent {
		if sum.TotalSessions == 0 {
			continue
		}
		switch p := sum.Percentage; {
		case p >= 85:
			bands[0].Count++
		case p >= 75:
			bands[1].Count++
		case p >= 65:
			bands[2].Count++
		default:
			bands[3].Count++
		}
	}
	return bands
}

// watchlist lists students below the threshold, most critical first.
func (e *Engine) watchlist(ctx context.Context, perStudent map[string]attendance.Summary) ([]WatchlistEntry, error) {
	var out []WatchlistEntry
	for studentID, sum := range perStudent {
		if sum.TotalSessions == 0 || sum.Percentage >= LowAttendanceThreshold {
			continue
		}
		out = append(out, WatchlistEntry{StudentID: studentID, Percentage: sum.Percentage})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percentage != out[j].Percentage {
			return out[i].Percentage < out[j].Percentage
		}
		return out[i].StudentID < out[j].StudentID
	})

	if e.dir == nil || len(out) == 0 {
		return out, nil
	}
	ids := make([]string, len(out))
	for i, w := range out {
		ids[i] = w.StudentID
	}
	students, err := e.dir.Students(ctx, ids)
	if err != nil {
		return nil, attendance.ErrDataUnavailable("student directory lookup failed: %v", err)
	}
	for i := range out {
		if s, ok := students[out[i].StudentID]; ok {
			out[i].Name = s.Name
			out[i].ClassName = s.ClassName
		}
	}
	return out, nil
}
