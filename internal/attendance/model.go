package attendance

import (
	"errors"
	"fmt"
	"time"
)

// Status classifies a student's presence in one session.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

// Valid reports whether s is one of the four allowed statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// Record is one attendance mark: one student, one subject, one session on one date.
type Record struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	ClassID        string    `json:"class_id"`
	SubjectID      string    `json:"subject_id"`
	TeacherID      string    `json:"teacher_id"`
	Date           time.Time `json:"date"`
	Session        string    `json:"session"`
	Status         Status    `json:"status"`
	MarkedBy       string    `json:"marked_by"`
	MarkedAt       time.Time `json:"marked_at"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

// Summary holds aggregated counts plus the present-only percentage for a scope.
type Summary struct {
	TotalSessions int     `json:"total_sessions"`
	PresentCount  int     `json:"present_count"`
	AbsentCount   int     `json:"absent_count"`
	LateCount     int     `json:"late_count"`
	ExcusedCount  int     `json:"excused_count"`
	Percentage    float64 `json:"percentage"`
}

// Code partitions errors into the outcomes callers react to.
type Code string

const (
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeNotFound         Code = "NOT_FOUND"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeDataIntegrity    Code = "DATA_INTEGRITY"
	CodeDataUnavailable  Code = "DATA_UNAVAILABLE"
)

// Error carries a code alongside the message so HTTP layers can map status codes.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func ErrNotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func ErrPermissionDenied(format string, args ...any) *Error {
	return &Error{Code: CodePermissionDenied, Message: fmt.Sprintf(format, args...)}
}

func ErrDataIntegrity(format string, args ...any) *Error {
	return &Error{Code: CodeDataIntegrity, Message: fmt.Sprintf(format, args...)}
}

func ErrDataUnavailable(format string, args ...any) *Error {
	return &Error{Code: CodeDataUnavailable, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the error code, defaulting to DATA_UNAVAILABLE for plain errors
// bubbling out of collaborators.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeDataUnavailable
}
