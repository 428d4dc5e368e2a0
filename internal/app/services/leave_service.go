package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/veli/attendix/internal/app/models"
	"github.com/veli/attendix/internal/pkg/apperrors"
	"github.com/veli/attendix/internal/pkg/helpers"
	"github.com/veli/attendix/internal/pkg/logger"
)

// LeaveService is the approval workflow around leave requests. It owns the
// request lifecycle; every attendance mutation goes through the
// reconciliation engine.
type LeaveService interface {
	// Submit stores a new pending request.
	Submit(ctx context.Context, lr *models.LeaveRequest) (int64, error)
	// Approve marks the request approved and materializes its attendance
	// entries via CreateFromLeaveRequest.
	Approve(ctx context.Context, requestID, deciderID int64) (*models.LeaveRequest, error)
	// Reject marks the request rejected. For a previously approved
	// request it first removes the attendance entries the approval
	// created, matched by source reference.
	Reject(ctx context.Context, requestID, deciderID int64, reason string) error
}

// leaveServiceImpl implements the LeaveService interface
type leaveServiceImpl struct {
	requests   LeaveRequestStore
	entries    AttendanceStore
	attendance AttendanceService
	log        zerolog.Logger
}

// NewLeaveService creates a new leave service instance
func NewLeaveService(requests LeaveRequestStore, entries AttendanceStore, attendance AttendanceService) LeaveService {
	return &leaveServiceImpl{
		requests:   requests,
		entries:    entries,
		attendance: attendance,
		log:        logger.With("leave_service"),
	}
}

func (s *leaveServiceImpl) Submit(ctx context.Context, lr *models.LeaveRequest) (int64, error) {
	if lr == nil {
		return 0, apperrors.NewValidationError("leave request is nil")
	}
	lr.DateFrom = helpers.DateOnly(lr.DateFrom)
	lr.DateTo = helpers.DateOnly(lr.DateTo)
	if lr.DateTo.Before(lr.DateFrom) {
		return 0, fmt.Errorf("%w: date_to before date_from", apperrors.ErrInvalidDateRange)
	}
	return s.requests.CreateLeaveRequest(ctx, lr)
}

func (s *leaveServiceImpl) Approve(ctx context.Context, requestID, deciderID int64) (*models.LeaveRequest, error) {
	lr, err := s.requests.GetLeaveRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if lr.Status != models.LeavePending {
		return nil, fmt.Errorf("%w: status %s", apperrors.ErrLeaveRequestNotPending, lr.Status)
	}

	now := time.Now().UTC()
	lr.Status = models.LeaveApproved
	lr.DecidedBy = &deciderID
	lr.DecidedAt = &now
	// The source reference ties every written entry back to this request
	// so a later rejection can remove exactly what the approval created.
	lr.SourceRef = "leave:" + uuid.NewString()

	if err := s.requests.UpdateLeaveRequestDecision(ctx, lr); err != nil {
		return nil, err
	}

	if _, err := s.attendance.CreateFromLeaveRequest(ctx, lr); err != nil {
		s.log.Error().Err(err).Int64("leaveRequestID", lr.ID).Msg("failed to materialize attendance for approved leave")
		return nil, err
	}

	s.log.Info().Int64("leaveRequestID", lr.ID).Int64("deciderID", deciderID).Msg("leave request approved")
	return lr, nil
}

func (s *leaveServiceImpl) Reject(ctx context.Context, requestID, deciderID int64, reason string) error {
	lr, err := s.requests.GetLeaveRequestByID(ctx, requestID)
	if err != nil {
		return err
	}

	switch lr.Status {
	case models.LeaveRejected:
		return nil // already rejected, nothing to undo
	case models.LeaveApproved:
		// Rejection-after-approval: remove the entries the approval wrote.
		if lr.SourceRef != "" {
			removed, err := s.entries.DeleteEntriesBySourceRef(ctx, lr.SourceRef)
			if err != nil {
				return err
			}
			s.log.Info().Int64("leaveRequestID", lr.ID).Int64("entriesRemoved", removed).Msg("reverted attendance for rejected leave")
		}
	}

	now := time.Now().UTC()
	lr.Status = models.LeaveRejected
	lr.DecidedBy = &deciderID
	lr.DecidedAt = &now
	if reason != "" {
		lr.Reason = reason
	}
	return s.requests.UpdateLeaveRequestDecision(ctx, lr)
}
