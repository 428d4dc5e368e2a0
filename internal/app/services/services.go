package services

import (
	"context"
	"time"

	"github.com/veli/attendix/internal/app/models"
	"github.com/veli/attendix/internal/app/repositories"
)

// Store interfaces consumed by the services. The pgx repositories implement
// them; tests substitute in-memory fakes. Every method reports missing rows
// with the matching apperrors sentinel and persistence failures wrapped in
// apperrors.ErrStorage.

// AttendanceStore persists attendance entries. It is the only writer of the
// attendance_entries table; uniqueness of (student, date, period) and of
// (student, date, disamb_key) for whole-day rows is enforced at this layer,
// so concurrent conflicting writes converge via upsert instead of failing.
type AttendanceStore interface {
	UpsertEntry(ctx context.Context, entry *models.AttendanceEntry) (*models.AttendanceEntry, error)
	GetEntry(ctx context.Context, studentID int64, date time.Time, periodID *int64) (*models.AttendanceEntry, error)
	FindWholeDayEntry(ctx context.Context, studentID int64, date time.Time, leaveTypeID *int64, disambKey string) (*models.AttendanceEntry, error)
	ListDayEntries(ctx context.Context, studentID int64, date time.Time) ([]*models.AttendanceEntry, error)
	DeletePeriodEntries(ctx context.Context, studentID int64, date time.Time) (int64, error)
	DeleteWholeDayEntriesExcept(ctx context.Context, studentID int64, date time.Time, keepKey string) (int64, error)
	DeleteEntry(ctx context.Context, studentID int64, date time.Time, periodID *int64) (bool, error)
	DeleteEntriesBySourceRef(ctx context.Context, sourceRef string) (int64, error)
	CountPeriodStatuses(ctx context.Context, studentID int64, from, to time.Time) (map[models.Status]int, error)
	ListMarkedStudentIDs(ctx context.Context, date time.Time) ([]int64, error)
}

// StudentStore resolves students and their school/class pairing.
type StudentStore interface {
	GetStudentByID(ctx context.Context, id int64) (*models.Student, error)
	ListActiveStudents(ctx context.Context) ([]*models.Student, error)
}

// LeaveTypeStore resolves school-configured leave types.
type LeaveTypeStore interface {
	GetLeaveTypeByID(ctx context.Context, id int64) (*models.LeaveType, error)
}

// PeriodStore resolves the school's period schedule.
type PeriodStore interface {
	GetPeriodByID(ctx context.Context, id int64) (*models.Period, error)
	ListPeriods(ctx context.Context, schoolID int64) ([]*models.Period, error)
}

// LeaveRequestStore persists leave requests.
type LeaveRequestStore interface {
	CreateLeaveRequest(ctx context.Context, lr *models.LeaveRequest) (int64, error)
	GetLeaveRequestByID(ctx context.Context, id int64) (*models.LeaveRequest, error)
	UpdateLeaveRequestDecision(ctx context.Context, lr *models.LeaveRequest) error
	ListApprovedLeaveCovering(ctx context.Context, date time.Time) ([]*models.LeaveRequest, error)
}

// Interface compliance checks for the pgx repositories.
var (
	_ AttendanceStore   = (*repositories.AttendanceRepository)(nil)
	_ StudentStore      = (*repositories.StudentRepository)(nil)
	_ LeaveTypeStore    = (*repositories.LeaveTypeRepository)(nil)
	_ PeriodStore       = (*repositories.PeriodRepository)(nil)
	_ LeaveRequestStore = (*repositories.LeaveRequestRepository)(nil)
)
