package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/veli/attendix/internal/app/models"
	"github.com/veli/attendix/internal/pkg/apperrors"
	"github.com/veli/attendix/internal/pkg/helpers"
	"github.com/veli/attendix/internal/pkg/logger"
	"github.com/veli/attendix/internal/pkg/validation"
)

// AttendanceService is the attendance reconciliation engine. It is the sole
// writer of attendance entries; the leave-approval, roll-call, auto-mark and
// manual-edit workflows all route their mutations through Record so the
// baseline and uniqueness invariants hold.
type AttendanceService interface {
	// Record decides whether to create, update or cascade attendance
	// entries for one (student, date) and returns the post-write entry.
	// Re-invoking with identical arguments is safe and converges to the
	// same end state.
	Record(ctx context.Context, in models.RecordInput) (*models.AttendanceEntry, error)
	// GetDayStatus returns the no_record / full_day / periods shape for a
	// student's day.
	GetDayStatus(ctx context.Context, studentID int64, date time.Time) (*models.DayStatus, error)
	// GetPeriodStatus returns the period entry's status, falling back to
	// the whole-day entry, then to StatusNone.
	GetPeriodStatus(ctx context.Context, studentID int64, date time.Time, periodID *int64) (models.Status, error)
	// DeleteRecord deletes exactly the entry at the given slot without
	// cascading and reports whether a row was removed.
	DeleteRecord(ctx context.Context, studentID int64, date time.Time, periodID *int64) (bool, error)
	// GetStatistics counts period-scoped entries in the inclusive range.
	GetStatistics(ctx context.Context, studentID int64, from, to time.Time) (*models.Statistics, error)
	// CreateFromLeaveRequest translates an approved leave request into
	// Record calls and returns the written entries.
	CreateFromLeaveRequest(ctx context.Context, lr *models.LeaveRequest) ([]*models.AttendanceEntry, error)
}

// EngineConfig carries the school-configurable engine settings.
type EngineConfig struct {
	// BaselineStatus is written on auto-created whole-day baselines.
	BaselineStatus models.Status
	// BaselineNote is the note attached to auto-created baselines.
	BaselineNote string
}

// attendanceServiceImpl implements the AttendanceService interface
type attendanceServiceImpl struct {
	entries    AttendanceStore
	students   StudentStore
	leaveTypes LeaveTypeStore
	cfg        EngineConfig
	log        zerolog.Logger
}

// NewAttendanceService creates a new attendance service instance. The
// baseline status is school-configurable and validated here rather than
// hard-coded in the engine.
func NewAttendanceService(entries AttendanceStore, students StudentStore, leaveTypes LeaveTypeStore, cfg EngineConfig) (AttendanceService, error) {
	if !cfg.BaselineStatus.Valid() {
		return nil, fmt.Errorf("%w: baseline status %q", apperrors.ErrInvalidStatus, cfg.BaselineStatus)
	}
	return &attendanceServiceImpl{
		entries:    entries,
		students:   students,
		leaveTypes: leaveTypes,
		cfg:        cfg,
		log:        logger.With("attendance_service"),
	}, nil
}

// validateRecordInput rejects out-of-enumeration values before any write.
func (s *attendanceServiceImpl) validateRecordInput(in *models.RecordInput) error {
	if !in.Status.Valid() {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidStatus, in.Status)
	}
	if in.Options.Source != "" && !in.Options.Source.Valid() {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidSource, in.Options.Source)
	}
	if d := in.Options.Details; d != nil {
		if d.Kind == models.DetailsOption && d.Option != "" && !d.Option.Valid() {
			return fmt.Errorf("%w: %q", apperrors.ErrInvalidDayOption, d.Option)
		}
		if err := validation.Struct(d); err != nil {
			return err
		}
	}
	return validation.Struct(in)
}

// resolveLeaveType loads the leave type when one is supplied. An unknown
// reference is an InvalidLeaveType, rejected before any write.
func (s *attendanceServiceImpl) resolveLeaveType(ctx context.Context, id *int64) (*models.LeaveType, error) {
	if id == nil {
		return nil, nil
	}
	lt, err := s.leaveTypes.GetLeaveTypeByID(ctx, *id)
	if err != nil {
		if errors.Is(err, apperrors.ErrLeaveTypeNotFound) {
			return nil, fmt.Errorf("%w: id %d", apperrors.ErrInvalidLeaveType, *id)
		}
		return nil, err
	}
	return lt, nil
}

// ensureBaseline guarantees the whole-day baseline entry exists before a
// period-scoped write, so a period entry never exists without its day-level
// default. The write is its own storage operation: if a later step fails,
// the committed baseline stays, and re-invoking Record converges.
func (s *attendanceServiceImpl) ensureBaseline(ctx context.Context, student *models.Student, date time.Time) error {
	_, err := s.entries.GetEntry(ctx, student.ID, date, nil)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperrors.ErrEntryNotFound) {
		return err
	}

	baseline := &models.AttendanceEntry{
		StudentID: student.ID,
		SchoolID:  student.SchoolID,
		ClassID:   student.ClassID,
		EntryDate: date,
		Status:    s.cfg.BaselineStatus,
		Note:      s.cfg.BaselineNote,
		Source:    models.SourceAutomatic,
	}
	if _, err := s.entries.UpsertEntry(ctx, baseline); err != nil {
		return err
	}
	s.log.Debug().Int64("studentID", student.ID).Time("date", date).Msg("auto-created whole-day baseline")
	return nil
}

// Record applies one reconciliation call: baseline guarantee, then the
// full-day-exclusive cascade, then the disambiguated upsert.
func (s *attendanceServiceImpl) Record(ctx context.Context, in models.RecordInput) (*models.AttendanceEntry, error) {
	if err := s.validateRecordInput(&in); err != nil {
		return nil, err
	}

	student, err := s.students.GetStudentByID(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}

	leaveType, err := s.resolveLeaveType(ctx, in.Options.LeaveTypeID)
	if err != nil {
		return nil, err
	}

	date := helpers.DateOnly(in.Date)
	source := in.Options.Source
	if source == "" {
		source = models.SourceManual
	}

	// Step 1: baseline guarantee. Must commit before any period-scoped
	// write so the day-level default never transiently disappears.
	if in.PeriodID != nil {
		if err := s.ensureBaseline(ctx, student, date); err != nil {
			return nil, err
		}
	}

	option := in.Options.Details.OptionTag()
	disambKey := ""
	if in.PeriodID == nil {
		disambKey = models.ComputeDisambKey(in.Options.Details, in.Options.LeaveTypeID)
	}

	// Step 2: full-day-exclusive cascade. Only a true full-day selection
	// of a leave type flagged full-day-exclusive supersedes the day.
	// Partial-day options (halves, exercise sessions) must never cascade:
	// doing so would destroy unrelated period records.
	if in.PeriodID == nil && option.IsFullDay() && leaveType != nil && leaveType.FullDayExclusive {
		removed, err := s.entries.DeletePeriodEntries(ctx, student.ID, date)
		if err != nil {
			return nil, err
		}
		removedDay, err := s.entries.DeleteWholeDayEntriesExcept(ctx, student.ID, date, disambKey)
		if err != nil {
			return nil, err
		}
		if removed+removedDay > 0 {
			s.log.Info().
				Int64("studentID", student.ID).
				Time("date", date).
				Int64("periodEntries", removed).
				Int64("wholeDayEntries", removedDay).
				Str("leaveType", leaveType.Name).
				Msg("full-day-exclusive leave superseded existing entries")
		}
	}

	// Step 3: disambiguated upsert.
	entry := &models.AttendanceEntry{
		StudentID:      student.ID,
		SchoolID:       student.SchoolID,
		ClassID:        student.ClassID,
		EntryDate:      date,
		PeriodID:       in.PeriodID,
		Status:         in.Status,
		LeaveTypeID:    in.Options.LeaveTypeID,
		Details:        in.Options.Details,
		DisambKey:      disambKey,
		Note:           in.Options.Note,
		Source:         source,
		SourceRef:      in.Options.SourceRef,
		InformedParent: in.Options.InformedParent,
	}

	if in.PeriodID == nil && option != "" {
		// Whole-day entry with an option tag: match the existing entry by
		// (student, date, leave type, disambiguation key) and update it in
		// place; insert when absent.
		existing, err := s.entries.FindWholeDayEntry(ctx, student.ID, date, in.Options.LeaveTypeID, disambKey)
		switch {
		case err == nil:
			entry.ID = existing.ID
			entry.CreatedAt = existing.CreatedAt
		case !errors.Is(err, apperrors.ErrEntryNotFound):
			return nil, err
		}
	}

	saved, err := s.entries.UpsertEntry(ctx, entry)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// GetDayStatus returns the day's shape: nothing, a single whole-day entry,
// or the full entry list with the baseline's status as the implied default.
func (s *attendanceServiceImpl) GetDayStatus(ctx context.Context, studentID int64, date time.Time) (*models.DayStatus, error) {
	entries, err := s.entries.ListDayEntries(ctx, studentID, helpers.DateOnly(date))
	if err != nil {
		return nil, err
	}

	switch {
	case len(entries) == 0:
		return &models.DayStatus{Kind: models.DayNoRecord}, nil
	case len(entries) == 1 && entries[0].IsWholeDay():
		return &models.DayStatus{Kind: models.DayFullDay, Status: entries[0].Status}, nil
	}

	// Multiple entries: the whole-day baseline's status is the implied
	// default for periods without their own entry.
	def := models.StatusNone
	for _, e := range entries {
		if e.IsWholeDay() && e.DisambKey == "" {
			def = e.Status
			break
		}
	}
	if def == models.StatusNone {
		for _, e := range entries {
			if e.IsWholeDay() {
				def = e.Status
				break
			}
		}
	}
	return &models.DayStatus{Kind: models.DayPeriods, Default: def, Entries: entries}, nil
}

// GetPeriodStatus is the read-side counterpart of the baseline invariant:
// a period without its own entry takes the whole-day entry's status. The
// fallback holds even if the baseline invariant was broken by writes outside
// the engine.
func (s *attendanceServiceImpl) GetPeriodStatus(ctx context.Context, studentID int64, date time.Time, periodID *int64) (models.Status, error) {
	day := helpers.DateOnly(date)

	if periodID != nil {
		entry, err := s.entries.GetEntry(ctx, studentID, day, periodID)
		if err == nil {
			return entry.Status, nil
		}
		if !errors.Is(err, apperrors.ErrEntryNotFound) {
			return models.StatusNone, err
		}
	}

	entry, err := s.entries.GetEntry(ctx, studentID, day, nil)
	if err == nil {
		return entry.Status, nil
	}
	if !errors.Is(err, apperrors.ErrEntryNotFound) {
		return models.StatusNone, err
	}

	// The baseline slot can be empty while another whole-day entry covers
	// the day, e.g. after a full-day-exclusive leave superseded it. Any
	// remaining whole-day entry still answers the day's status.
	entries, err := s.entries.ListDayEntries(ctx, studentID, day)
	if err != nil {
		return models.StatusNone, err
	}
	for _, e := range entries {
		if e.IsWholeDay() {
			return e.Status, nil
		}
	}
	return models.StatusNone, nil
}

// DeleteRecord deletes exactly the addressed entry. It deliberately does not
// remove a now-possibly-orphaned baseline: creation auto-repairs, deletion
// never cascades.
func (s *attendanceServiceImpl) DeleteRecord(ctx context.Context, studentID int64, date time.Time, periodID *int64) (bool, error) {
	return s.entries.DeleteEntry(ctx, studentID, helpers.DateOnly(date), periodID)
}

// GetStatistics counts period-scoped entries grouped by status and derives
// the attendance rate (present + late over total), zero when the range holds
// no period entries.
func (s *attendanceServiceImpl) GetStatistics(ctx context.Context, studentID int64, from, to time.Time) (*models.Statistics, error) {
	from, to = helpers.DateOnly(from), helpers.DateOnly(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s after %s", apperrors.ErrInvalidDateRange, from.Format(helpers.DateFormat), to.Format(helpers.DateFormat))
	}

	counts, err := s.entries.CountPeriodStatuses(ctx, studentID, from, to)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	rate := 0.0
	if total > 0 {
		attended := counts[models.StatusPresent] + counts[models.StatusLate]
		rate = math.Round(float64(attended)/float64(total)*100) / 100
	}

	return &models.Statistics{
		StudentID:      studentID,
		From:           from,
		To:             to,
		Counts:         counts,
		TotalPeriods:   total,
		AttendanceRate: rate,
	}, nil
}

// CreateFromLeaveRequest is a thin adapter over Record: one whole-day call
// per day for full-day requests, one period-scoped call per listed period
// otherwise. It owns no invariants of its own.
func (s *attendanceServiceImpl) CreateFromLeaveRequest(ctx context.Context, lr *models.LeaveRequest) ([]*models.AttendanceEntry, error) {
	if lr == nil {
		return nil, apperrors.NewValidationError("leave request is nil")
	}

	details := lr.Details
	if details == nil {
		details = &models.EntryDetails{Kind: models.DetailsOption, Option: models.OptionFullDay}
	}

	opts := models.RecordOptions{
		LeaveTypeID: &lr.LeaveTypeID,
		Note:        lr.Reason,
		Details:     details,
		Source:      models.SourceLeaveRequest,
		SourceRef:   lr.SourceRef,
	}

	var written []*models.AttendanceEntry
	for _, date := range lr.Dates() {
		if lr.SpansFullDay() {
			entry, err := s.Record(ctx, models.RecordInput{
				StudentID: lr.StudentID,
				Date:      date,
				Status:    models.StatusExcused,
				Options:   opts,
			})
			if err != nil {
				return written, err
			}
			written = append(written, entry)
			continue
		}

		for _, periodID := range details.Periods {
			pid := periodID
			entry, err := s.Record(ctx, models.RecordInput{
				StudentID: lr.StudentID,
				Date:      date,
				PeriodID:  &pid,
				Status:    models.StatusExcused,
				Options:   opts,
			})
			if err != nil {
				return written, err
			}
			written = append(written, entry)
		}
	}
	return written, nil
}
