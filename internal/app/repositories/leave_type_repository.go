package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veli/attendix/internal/app/models"
	"github.com/veli/attendix/internal/pkg/apperrors"
	"github.com/veli/attendix/internal/pkg/logger"
)

// LeaveTypeRepository handles leave type database operations
type LeaveTypeRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewLeaveTypeRepository creates a new LeaveTypeRepository
func NewLeaveTypeRepository(db *pgxpool.Pool) *LeaveTypeRepository {
	return &LeaveTypeRepository{
		db: db,
		sb: psql,
	}
}

// GetLeaveTypeByID retrieves a leave type by ID, including its
// full-day-exclusive flag.
func (r *LeaveTypeRepository) GetLeaveTypeByID(ctx context.Context, id int64) (*models.LeaveType, error) {
	sql, args, err := r.sb.Select("id", "school_id", "name", "full_day_exclusive").
		From("leave_types").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get leave type by ID SQL")
		return nil, fmt.Errorf("failed to build get leave type query: %w", err)
	}

	lt := &models.LeaveType{}
	err = r.db.QueryRow(ctx, sql, args...).Scan(&lt.ID, &lt.SchoolID, &lt.Name, &lt.FullDayExclusive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrLeaveTypeNotFound
		}
		logger.Error().Err(err).Int64("leaveTypeID", id).Msg("Error scanning leave type row")
		return nil, apperrors.NewStorageError("get leave type by id", err)
	}
	return lt, nil
}
