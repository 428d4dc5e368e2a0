package models

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Status is the enumerated attendance status of an entry.
type Status string

const (
	StatusPresent    Status = "present"
	StatusAbsent     Status = "absent"
	StatusLate       Status = "late"
	StatusExcused    Status = "excused"
	StatusEarlyLeave Status = "early_leave"
	StatusLeave      Status = "leave"

	// StatusNone is the zero value returned by reads when no entry and no
	// whole-day fallback exists for the requested slot.
	StatusNone Status = ""
)

// AllStatuses lists every valid attendance status.
var AllStatuses = []Status{
	StatusPresent,
	StatusAbsent,
	StatusLate,
	StatusExcused,
	StatusEarlyLeave,
	StatusLeave,
}

// Valid reports whether s is part of the status enumeration.
func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Source identifies which workflow wrote an entry.
type Source string

const (
	SourceManual       Source = "manual"
	SourceAutomatic    Source = "automatic"
	SourceLeaveRequest Source = "leave_request"
	SourceSystem       Source = "system"
)

// Valid reports whether src is part of the source enumeration.
func (src Source) Valid() bool {
	switch src {
	case SourceManual, SourceAutomatic, SourceLeaveRequest, SourceSystem:
		return true
	}
	return false
}

// DayOption tags which part of the day a whole-day entry covers.
type DayOption string

const (
	OptionFullDay       DayOption = "full_day"
	OptionMorningHalf   DayOption = "am_half"
	OptionAfternoonHalf DayOption = "pm_half"
	// OptionMorningExercise / OptionEveningExercise name the two daily
	// exercise sessions (早操 / 晚操).
	OptionMorningExercise DayOption = "zcao"
	OptionEveningExercise DayOption = "wcao"
)

// Valid reports whether o is part of the day option enumeration.
func (o DayOption) Valid() bool {
	switch o {
	case OptionFullDay, OptionMorningHalf, OptionAfternoonHalf, OptionMorningExercise, OptionEveningExercise:
		return true
	}
	return false
}

// IsFullDay reports whether the option selects the entire day. Only a true
// full-day selection is allowed to trigger the exclusive cascade; half-day
// and named-session options never do.
func (o DayOption) IsFullDay() bool {
	return o == OptionFullDay
}

// DetailsKind tags the variant carried by EntryDetails.
type DetailsKind string

const (
	DetailsOption  DetailsKind = "option"
	DetailsPeriods DetailsKind = "periods"
	DetailsTime    DetailsKind = "time"
)

// EntryDetails is the structured payload attached to an entry. Exactly one
// variant is populated, selected by Kind.
type EntryDetails struct {
	Kind    DetailsKind `json:"kind" validate:"required,oneof=option periods time"`
	Option  DayOption   `json:"option,omitempty" validate:"omitempty,oneof=full_day am_half pm_half zcao wcao"`
	Periods []int64     `json:"periods,omitempty"`
	Time    string      `json:"time,omitempty"`
}

// OptionTag returns the day option, or empty when the details carry a
// different variant.
func (d *EntryDetails) OptionTag() DayOption {
	if d == nil || d.Kind != DetailsOption {
		return ""
	}
	return d.Option
}

// ComputeDisambKey derives the canonical disambiguation key for a whole-day
// entry from its details and leave type. The key lets multiple whole-day rows
// coexist on one date; the plain baseline row and any detail-less whole-day
// write share the empty key so they occupy the same slot.
func ComputeDisambKey(d *EntryDetails, leaveTypeID *int64) string {
	var base string
	if d != nil {
		switch d.Kind {
		case DetailsOption:
			if d.Option != "" {
				base = "opt:" + string(d.Option)
			}
		case DetailsPeriods:
			if len(d.Periods) > 0 {
				ids := make([]int64, len(d.Periods))
				copy(ids, d.Periods)
				sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
				parts := make([]string, len(ids))
				for i, id := range ids {
					parts[i] = strconv.FormatInt(id, 10)
				}
				base = "per:" + strings.Join(parts, ",")
			}
		case DetailsTime:
			// A clock time is not a day subdivision; it never disambiguates.
		}
	}
	if base == "" {
		return ""
	}
	if leaveTypeID != nil {
		return base + "|lt:" + strconv.FormatInt(*leaveTypeID, 10)
	}
	return base
}

// AttendanceEntry is an attendance record for one student on one date,
// scoped either to a single period or to the whole day (nil PeriodID).
type AttendanceEntry struct {
	ID        int64     `json:"id" db:"id"`
	StudentID int64     `json:"studentId" db:"student_id"`
	SchoolID  int64     `json:"schoolId" db:"school_id"`
	ClassID   int64     `json:"classId" db:"class_id"`
	EntryDate time.Time `json:"entryDate" db:"entry_date"`
	// PeriodID is nil for whole-day entries.
	PeriodID       *int64        `json:"periodId,omitempty" db:"period_id"`
	Status         Status        `json:"status" db:"status"`
	LeaveTypeID    *int64        `json:"leaveTypeId,omitempty" db:"leave_type_id"`
	Details        *EntryDetails `json:"details,omitempty" db:"details"`
	DisambKey      string        `json:"-" db:"disamb_key"`
	Note           string        `json:"note,omitempty" db:"note"`
	Source         Source        `json:"source" db:"source"`
	SourceRef      string        `json:"sourceRef,omitempty" db:"source_ref"`
	InformedParent bool          `json:"informedParent" db:"informed_parent"`
	CreatedAt      time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time     `json:"updatedAt" db:"updated_at"`
}

// IsWholeDay reports whether the entry covers the whole day.
func (e *AttendanceEntry) IsWholeDay() bool {
	return e.PeriodID == nil
}

// RecordOptions is the optional bag accompanying a Record call. All fields
// may be zero; the engine fills source defaults.
type RecordOptions struct {
	LeaveTypeID    *int64        `json:"leaveTypeId,omitempty"`
	Note           string        `json:"note,omitempty"`
	Details        *EntryDetails `json:"details,omitempty"`
	Source         Source        `json:"source,omitempty" validate:"omitempty,oneof=manual automatic leave_request system"`
	SourceRef      string        `json:"sourceRef,omitempty"`
	InformedParent bool          `json:"informedParent,omitempty"`
}

// RecordInput carries the arguments of a single reconciliation call.
type RecordInput struct {
	StudentID int64     `json:"studentId" validate:"required,gt=0"`
	Date      time.Time `json:"date" validate:"required"`
	PeriodID  *int64    `json:"periodId,omitempty"`
	Status    Status    `json:"status" validate:"required,oneof=present absent late excused early_leave leave"`
	Options   RecordOptions
}

// DayStatusKind is the shape of a day-status read.
type DayStatusKind string

const (
	DayNoRecord DayStatusKind = "no_record"
	DayFullDay  DayStatusKind = "full_day"
	DayPeriods  DayStatusKind = "periods"
)

// DayStatus is the result of GetDayStatus. For DayFullDay, Status holds the
// single whole-day entry's status. For DayPeriods, Default holds the
// whole-day baseline status implied for periods without their own entry and
// Entries lists the whole-day entry first, then period entries in schedule
// order.
type DayStatus struct {
	Kind    DayStatusKind      `json:"kind"`
	Status  Status             `json:"status,omitempty"`
	Default Status             `json:"default,omitempty"`
	Entries []*AttendanceEntry `json:"entries,omitempty"`
}

// Statistics summarizes period-scoped entries over a date range. Whole-day
// baselines are excluded from every count.
type Statistics struct {
	StudentID      int64          `json:"studentId"`
	From           time.Time      `json:"from"`
	To             time.Time      `json:"to"`
	Counts         map[Status]int `json:"counts"`
	TotalPeriods   int            `json:"totalPeriods"`
	AttendanceRate float64        `json:"attendanceRate"`
}
