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

// PeriodRepository handles period database operations
type PeriodRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewPeriodRepository creates a new PeriodRepository
func NewPeriodRepository(db *pgxpool.Pool) *PeriodRepository {
	return &PeriodRepository{
		db: db,
		sb: psql,
	}
}

// GetPeriodByID retrieves a period by ID
func (r *PeriodRepository) GetPeriodByID(ctx context.Context, id int64) (*models.Period, error) {
	sql, args, err := r.sb.Select("id", "school_id", "name", "position", "starts_at", "ends_at").
		From("periods").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get period by ID SQL")
		return nil, fmt.Errorf("failed to build get period query: %w", err)
	}

	period := &models.Period{}
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&period.ID, &period.SchoolID, &period.Name, &period.Position, &period.StartsAt, &period.EndsAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrPeriodNotFound
		}
		logger.Error().Err(err).Int64("periodID", id).Msg("Error scanning period row")
		return nil, apperrors.NewStorageError("get period by id", err)
	}
	return period, nil
}

// ListPeriods retrieves a school's periods in schedule order
func (r *PeriodRepository) ListPeriods(ctx context.Context, schoolID int64) ([]*models.Period, error) {
	sql, args, err := r.sb.Select("id", "school_id", "name", "position", "starts_at", "ends_at").
		From("periods").
		Where(squirrel.Eq{"school_id": schoolID}).
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list periods SQL")
		return nil, fmt.Errorf("failed to build list periods query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("schoolID", schoolID).Msg("Error executing list periods query")
		return nil, apperrors.NewStorageError("list periods", err)
	}
	defer rows.Close()

	periods := []*models.Period{}
	for rows.Next() {
		period := &models.Period{}
		if err := rows.Scan(&period.ID, &period.SchoolID, &period.Name, &period.Position, &period.StartsAt, &period.EndsAt); err != nil {
			return nil, apperrors.NewStorageError("scan period row", err)
		}
		periods = append(periods, period)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list periods", err)
	}
	return periods, nil
}
