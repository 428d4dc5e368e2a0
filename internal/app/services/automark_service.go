package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/veli/attendix/internal/app/models"
	"github.com/veli/attendix/internal/pkg/helpers"
	"github.com/veli/attendix/internal/pkg/logger"
)

// AutoMarkService runs the daily batch that records a status for every
// active student who has no entry yet: the configured default (present)
// normally, leave when an approved leave request covers the day.
type AutoMarkService interface {
	// Run marks all unmarked students for the given date.
	Run(ctx context.Context, date time.Time) (*AutoMarkResult, error)
	// RunDue runs for now's date, but only once the configured cutoff
	// clock time has passed; before the cutoff it is a no-op returning
	// (nil, nil).
	RunDue(ctx context.Context, now time.Time) (*AutoMarkResult, error)
}

// AutoMarkConfig carries the batch settings.
type AutoMarkConfig struct {
	// Cutoff is the HH:MM clock time gating RunDue.
	Cutoff string
	// DefaultStatus is recorded for students without an approved leave.
	DefaultStatus models.Status
}

// AutoMarkResult summarizes one batch run.
type AutoMarkResult struct {
	Date    time.Time `json:"date"`
	Marked  int       `json:"marked"`
	OnLeave int       `json:"onLeave"`
	Skipped int       `json:"skipped"`
}

// autoMarkServiceImpl implements the AutoMarkService interface
type autoMarkServiceImpl struct {
	attendance AttendanceService
	entries    AttendanceStore
	students   StudentStore
	leaves     LeaveRequestStore
	cfg        AutoMarkConfig
	log        zerolog.Logger
}

// NewAutoMarkService creates a new auto-mark service instance
func NewAutoMarkService(attendance AttendanceService, entries AttendanceStore, students StudentStore, leaves LeaveRequestStore, cfg AutoMarkConfig) AutoMarkService {
	if cfg.DefaultStatus == "" {
		cfg.DefaultStatus = models.StatusPresent
	}
	return &autoMarkServiceImpl{
		attendance: attendance,
		entries:    entries,
		students:   students,
		leaves:     leaves,
		cfg:        cfg,
		log:        logger.With("automark_service"),
	}
}

func (s *autoMarkServiceImpl) RunDue(ctx context.Context, now time.Time) (*AutoMarkResult, error) {
	cutoff, err := helpers.ParseClockTime(s.cfg.Cutoff, now)
	if err != nil {
		return nil, err
	}
	if now.UTC().Before(cutoff) {
		s.log.Debug().Time("now", now).Time("cutoff", cutoff).Msg("before cutoff, skipping auto-mark run")
		return nil, nil
	}
	return s.Run(ctx, now)
}

func (s *autoMarkServiceImpl) Run(ctx context.Context, date time.Time) (*AutoMarkResult, error) {
	day := helpers.DateOnly(date)

	students, err := s.students.ListActiveStudents(ctx)
	if err != nil {
		return nil, err
	}

	markedIDs, err := s.entries.ListMarkedStudentIDs(ctx, day)
	if err != nil {
		return nil, err
	}
	marked := make(map[int64]bool, len(markedIDs))
	for _, id := range markedIDs {
		marked[id] = true
	}

	approved, err := s.leaves.ListApprovedLeaveCovering(ctx, day)
	if err != nil {
		return nil, err
	}
	onLeave := make(map[int64]*models.LeaveRequest, len(approved))
	for _, lr := range approved {
		onLeave[lr.StudentID] = lr
	}

	result := &AutoMarkResult{Date: day}
	for _, student := range students {
		if marked[student.ID] {
			result.Skipped++
			continue
		}

		in := models.RecordInput{
			StudentID: student.ID,
			Date:      day,
			Status:    s.cfg.DefaultStatus,
			Options:   models.RecordOptions{Source: models.SourceSystem},
		}
		if lr, ok := onLeave[student.ID]; ok {
			in.Status = models.StatusLeave
			in.Options.LeaveTypeID = &lr.LeaveTypeID
			in.Options.Details = lr.Details
			in.Options.SourceRef = lr.SourceRef
		}

		if _, err := s.attendance.Record(ctx, in); err != nil {
			// One bad student record must not sink the batch; the next
			// run converges for anyone skipped here.
			s.log.Error().Err(err).Int64("studentID", student.ID).Time("date", day).Msg("auto-mark record failed")
			continue
		}
		if in.Status == models.StatusLeave {
			result.OnLeave++
		} else {
			result.Marked++
		}
	}

	s.log.Info().
		Time("date", day).
		Int("marked", result.Marked).
		Int("onLeave", result.OnLeave).
		Int("skipped", result.Skipped).
		Msg("auto-mark run complete")
	return result, nil
}
