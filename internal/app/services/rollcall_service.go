package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/veli/attendix/internal/app/models"
	"github.com/veli/attendix/internal/pkg/logger"
	"github.com/veli/attendix/internal/pkg/validation"
)

// RollCallSheet is a completed roll call: one mark per student, covering the
// listed periods (e.g. a morning roll call covering periods 1-2).
type RollCallSheet struct {
	Date      time.Time      `json:"date" validate:"required"`
	PeriodIDs []int64        `json:"periodIds" validate:"required,min=1"`
	Marks     []RollCallMark `json:"marks" validate:"required,min=1,dive"`
}

// RollCallMark is one student's mark on a roll call sheet.
type RollCallMark struct {
	StudentID      int64         `json:"studentId" validate:"required,gt=0"`
	Status         models.Status `json:"status" validate:"required,oneof=present absent late excused early_leave leave"`
	Note           string        `json:"note,omitempty"`
	InformedParent bool          `json:"informedParent,omitempty"`
}

// RollCallService translates a completed roll call into one Record call per
// student: whole-day entries disambiguated by the sheet's period list.
type RollCallService interface {
	Complete(ctx context.Context, sheet RollCallSheet) ([]*models.AttendanceEntry, error)
}

// rollCallServiceImpl implements the RollCallService interface
type rollCallServiceImpl struct {
	attendance AttendanceService
	periods    PeriodStore
	log        zerolog.Logger
}

// NewRollCallService creates a new roll call service instance
func NewRollCallService(attendance AttendanceService, periods PeriodStore) RollCallService {
	return &rollCallServiceImpl{
		attendance: attendance,
		periods:    periods,
		log:        logger.With("rollcall_service"),
	}
}

func (s *rollCallServiceImpl) Complete(ctx context.Context, sheet RollCallSheet) ([]*models.AttendanceEntry, error) {
	if err := validation.Struct(sheet); err != nil {
		return nil, err
	}

	// Resolve the covered periods up front; a sheet referencing an unknown
	// period is rejected before any mark is written.
	for _, periodID := range sheet.PeriodIDs {
		if _, err := s.periods.GetPeriodByID(ctx, periodID); err != nil {
			return nil, err
		}
	}

	// All entries of one sheet share a source reference.
	sourceRef := "rollcall:" + uuid.NewString()
	details := &models.EntryDetails{Kind: models.DetailsPeriods, Periods: sheet.PeriodIDs}

	entries := make([]*models.AttendanceEntry, 0, len(sheet.Marks))
	for _, mark := range sheet.Marks {
		entry, err := s.attendance.Record(ctx, models.RecordInput{
			StudentID: mark.StudentID,
			Date:      sheet.Date,
			Status:    mark.Status,
			Options: models.RecordOptions{
				Details:        details,
				Note:           mark.Note,
				Source:         models.SourceManual,
				SourceRef:      sourceRef,
				InformedParent: mark.InformedParent,
			},
		})
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}

	s.log.Info().Time("date", sheet.Date).Int("students", len(entries)).Ints64("periods", sheet.PeriodIDs).Msg("roll call completed")
	return entries, nil
}
