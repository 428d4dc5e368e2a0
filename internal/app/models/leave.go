package models

import "time"

// LeaveType is a school-configured category of leave (sick, personal, ...).
// FullDayExclusive marks types whose full-day selection supersedes and
// removes all other attendance entries for the day.
type LeaveType struct {
	ID               int64  `json:"id" db:"id"`
	SchoolID         int64  `json:"schoolId" db:"school_id"`
	Name             string `json:"name" db:"name"`
	FullDayExclusive bool   `json:"fullDayExclusive" db:"full_day_exclusive"`
}

// LeaveRequestStatus is the lifecycle state of a leave request.
type LeaveRequestStatus string

const (
	LeavePending  LeaveRequestStatus = "pending"
	LeaveApproved LeaveRequestStatus = "approved"
	LeaveRejected LeaveRequestStatus = "rejected"
)

// LeaveRequest is a student's request for leave over a date range. The
// approval workflow translates approved requests into attendance entries;
// the request itself never touches the attendance table directly.
type LeaveRequest struct {
	ID          int64              `json:"id" db:"id"`
	StudentID   int64              `json:"studentId" db:"student_id"`
	LeaveTypeID int64              `json:"leaveTypeId" db:"leave_type_id"`
	DateFrom    time.Time          `json:"dateFrom" db:"date_from"`
	DateTo      time.Time          `json:"dateTo" db:"date_to"`
	// Details selects which part of each day the leave covers: a full-day
	// or partial-day option, or an explicit period list for a single session.
	Details   *EntryDetails      `json:"details,omitempty" db:"details"`
	Reason    string             `json:"reason,omitempty" db:"reason"`
	Status    LeaveRequestStatus `json:"status" db:"status"`
	DecidedBy *int64             `json:"decidedBy,omitempty" db:"decided_by"`
	DecidedAt *time.Time         `json:"decidedAt,omitempty" db:"decided_at"`
	// SourceRef ties attendance entries back to this request; set when the
	// request is approved.
	SourceRef string    `json:"sourceRef,omitempty" db:"source_ref"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// SpansFullDay reports whether the request covers whole days rather than a
// specific session's period list.
func (lr *LeaveRequest) SpansFullDay() bool {
	return lr.Details == nil || lr.Details.Kind != DetailsPeriods
}

// Dates expands the inclusive DateFrom..DateTo range into calendar days.
func (lr *LeaveRequest) Dates() []time.Time {
	var dates []time.Time
	for d := lr.DateFrom; !d.After(lr.DateTo); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}
