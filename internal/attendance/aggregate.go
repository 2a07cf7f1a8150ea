package attendance

// Aggregate tallies one scope's records into a Summary in a single pass.
// The caller is responsible for restricting records to one scope; Aggregate
// counts whatever it is given. An empty slice yields a zero summary, not an
// error. A status outside the closed set means upstream corruption and is
// reported as a DATA_INTEGRITY error.
func Aggregate(records []Record) (Summary, error) {
	var s Summary
	for _, rec := range records {
		switch rec.Status {
		case StatusPresent:
			s.PresentCount++
		case StatusAbsent:
			s.AbsentCount++
		case StatusLate:
			s.LateCount++
		case StatusExcused:
			s.ExcusedCount++
		default:
			return Summary{}, ErrDataIntegrity("record %s has unknown status %q", rec.ID, rec.Status)
		}
		s.TotalSessions++
	}
	s.Percentage = percentage(s.PresentCount, s.TotalSessions)
	return s, nil
}

// Rollup combines per-scope summaries into one by summing counts before
// dividing. Averaging the sub-scope percentages would misweight scopes with
// different session counts, so it is never done here.
func Rollup(summaries ...Summary) Summary {
	var s Summary
	for _, sub := range summaries {
		s.TotalSessions += sub.TotalSessions
		s.PresentCount += sub.PresentCount
		s.AbsentCount += sub.AbsentCount
		s.LateCount += sub.LateCount
		s.ExcusedCount += sub.ExcusedCount
	}
	s.Percentage = percentage(s.PresentCount, s.TotalSessions)
	return s
}

// percentage is the one division in the package: present-only numerator,
// zero sessions yields 0 rather than NaN.
func percentage(present, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(present) / float64(total) * 100
}
