package repositories

import (
	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories holds all the repository instances
type Repositories struct {
	AttendanceRepository   *AttendanceRepository
	StudentRepository      *StudentRepository
	PeriodRepository       *PeriodRepository
	LeaveTypeRepository    *LeaveTypeRepository
	LeaveRequestRepository *LeaveRequestRepository
}

// NewRepositories initializes all repositories
func NewRepositories(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		AttendanceRepository:   NewAttendanceRepository(db),
		StudentRepository:      NewStudentRepository(db),
		PeriodRepository:       NewPeriodRepository(db),
		LeaveTypeRepository:    NewLeaveTypeRepository(db),
		LeaveRequestRepository: NewLeaveRequestRepository(db),
	}
}

// psql is the shared statement builder with PostgreSQL placeholders.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
