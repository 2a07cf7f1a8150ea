package analytics

import (
	"time"

	"schoolattend/internal/attendance"
)

// Window is an inclusive date range.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Days counts the calendar days the window spans, endpoints included.
func (w Window) Days() int {
	return int(w.To.Sub(w.From)/(24*time.Hour)) + 1
}

// Filters narrow an analytics query. Zero values mean "no constraint".
type Filters struct {
	ClassID   string            `json:"class_id,omitempty"`
	SubjectID string            `json:"subject_id,omitempty"`
	TeacherID string            `json:"teacher_id,omitempty"`
	Status    attendance.Status `json:"status,omitempty"`
}

// Overview is the headline metric block of a snapshot.
type Overview struct {
	TotalStudents      int     `json:"total_students"`
	AverageAttendance  float64 `json:"average_attendance"`
	AttendanceTrend    float64 `json:"attendance_trend"`
	LowAttendanceCount int     `json:"low_attendance_count"`
	TotalClasses       int     `json:"total_classes"`
}

// ChartPoint is one labelled bar of a breakdown chart.
type ChartPoint struct {
	Label      string  `json:"label"`
	Percentage float64 `json:"percentage"`
}

// TrendPoint is one bucket on the time axis. Date is the bucket start.
type TrendPoint struct {
	Date       string  `json:"date"`
	Percentage float64 `json:"percentage"`
}

// Band names for the distribution chart.
const (
	BandExcellent = "Excellent"
	BandGood      = "Good"
	BandWarning   = "Warning"
	BandCritical  = "Critical"
)

// DistributionBand counts students whose overall percentage falls in a band.
type DistributionBand struct {
	Band  string `json:"band"`
	Count int    `json:"count"`
}

// WatchlistEntry is one student below the low-attendance threshold.
type WatchlistEntry struct {
	StudentID  string  `json:"student_id"`
	Name       string  `json:"name"`
	ClassName  string  `json:"class_name"`
	Percentage float64 `json:"percentage"`
}

// Charts is the widget payload block of a snapshot.
type Charts struct {
	ClassWise             []ChartPoint       `json:"class_wise"`
	SubjectWise           []ChartPoint       `json:"subject_wise"`
	Trend                 []TrendPoint       `json:"trend"`
	Distribution          []DistributionBand `json:"distribution"`
	LowAttendanceStudents []WatchlistEntry   `json:"low_attendance_students"`
}

// Snapshot is the full analytics payload for one query. It is ephemeral:
// recomputed from raw records on every request, never a source of truth.
type Snapshot struct {
	SchoolID   string    `json:"school_id"`
	Window     Window    `json:"window"`
	Filters    Filters   `json:"filters"`
	ComputedAt time.Time `json:"computed_at"`
	Overview   Overview  `json:"overview"`
	Charts     Charts    `json:"charts"`
}
