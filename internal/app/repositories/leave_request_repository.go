package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veli/attendix/internal/app/models"
	"github.com/veli/attendix/internal/pkg/apperrors"
	"github.com/veli/attendix/internal/pkg/dberrors"
	"github.com/veli/attendix/internal/pkg/logger"
)

var leaveRequestColumns = []string{
	"id", "student_id", "leave_type_id", "date_from", "date_to", "details",
	"reason", "status", "decided_by", "decided_at", "source_ref",
	"created_at", "updated_at",
}

// LeaveRequestRepository handles leave request database operations
type LeaveRequestRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewLeaveRequestRepository creates a new LeaveRequestRepository
func NewLeaveRequestRepository(db *pgxpool.Pool) *LeaveRequestRepository {
	return &LeaveRequestRepository{
		db: db,
		sb: psql,
	}
}

func scanLeaveRequest(row rowScanner) (*models.LeaveRequest, error) {
	lr := &models.LeaveRequest{}
	var details []byte
	err := row.Scan(
		&lr.ID, &lr.StudentID, &lr.LeaveTypeID, &lr.DateFrom, &lr.DateTo, &details,
		&lr.Reason, &lr.Status, &lr.DecidedBy, &lr.DecidedAt, &lr.SourceRef,
		&lr.CreatedAt, &lr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		d := &models.EntryDetails{}
		if err := json.Unmarshal(details, d); err != nil {
			return nil, fmt.Errorf("error decoding leave request details: %w", err)
		}
		lr.Details = d
	}
	return lr, nil
}

// CreateLeaveRequest inserts a pending leave request
func (r *LeaveRequestRepository) CreateLeaveRequest(ctx context.Context, lr *models.LeaveRequest) (int64, error) {
	details, err := marshalDetails(lr.Details)
	if err != nil {
		return 0, err
	}

	sql, args, err := r.sb.Insert("leave_requests").
		Columns("student_id", "leave_type_id", "date_from", "date_to", "details", "reason", "status").
		Values(lr.StudentID, lr.LeaveTypeID, lr.DateFrom, lr.DateTo, details, lr.Reason, models.LeavePending).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create leave request SQL")
		return 0, fmt.Errorf("failed to build create leave request query: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return 0, fmt.Errorf("%w: request references a missing student or leave type", apperrors.ErrResourceNotFound)
		}
		logger.Error().Err(err).Int64("studentID", lr.StudentID).Msg("Error executing create leave request query")
		return 0, apperrors.NewStorageError("create leave request", err)
	}
	return id, nil
}

// GetLeaveRequestByID retrieves a leave request by ID
func (r *LeaveRequestRepository) GetLeaveRequestByID(ctx context.Context, id int64) (*models.LeaveRequest, error) {
	sql, args, err := r.sb.Select(leaveRequestColumns...).
		From("leave_requests").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get leave request SQL")
		return nil, fmt.Errorf("failed to build get leave request query: %w", err)
	}

	lr, err := scanLeaveRequest(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrLeaveRequestNotFound
		}
		logger.Error().Err(err).Int64("leaveRequestID", id).Msg("Error scanning leave request row")
		return nil, apperrors.NewStorageError("get leave request by id", err)
	}
	return lr, nil
}

// UpdateLeaveRequestDecision records an approval or rejection on a request.
func (r *LeaveRequestRepository) UpdateLeaveRequestDecision(ctx context.Context, lr *models.LeaveRequest) error {
	sql, args, err := r.sb.Update("leave_requests").
		Set("status", lr.Status).
		Set("decided_by", lr.DecidedBy).
		Set("decided_at", lr.DecidedAt).
		Set("source_ref", lr.SourceRef).
		Set("reason", lr.Reason).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": lr.ID}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building update leave request SQL")
		return fmt.Errorf("failed to build update leave request query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("leaveRequestID", lr.ID).Msg("Error executing update leave request query")
		return apperrors.NewStorageError("update leave request", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrLeaveRequestNotFound
	}
	return nil
}

// ListApprovedLeaveCovering returns approved requests whose date range
// includes the given date. The auto-mark batch marks those students on
// leave instead of present.
func (r *LeaveRequestRepository) ListApprovedLeaveCovering(ctx context.Context, date time.Time) ([]*models.LeaveRequest, error) {
	sql, args, err := r.sb.Select(leaveRequestColumns...).
		From("leave_requests").
		Where(squirrel.Eq{"status": models.LeaveApproved}).
		Where(squirrel.LtOrEq{"date_from": date}).
		Where(squirrel.GtOrEq{"date_to": date}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list approved leave SQL")
		return nil, fmt.Errorf("failed to build list approved leave query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list approved leave query")
		return nil, apperrors.NewStorageError("list approved leave", err)
	}
	defer rows.Close()

	requests := []*models.LeaveRequest{}
	for rows.Next() {
		lr, err := scanLeaveRequest(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("scan leave request row", err)
		}
		requests = append(requests, lr)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list approved leave", err)
	}
	return requests, nil
}
