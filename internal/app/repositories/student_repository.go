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

// StudentRepository handles student database operations
type StudentRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(db *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{
		db: db,
		sb: psql,
	}
}

// GetStudentByID retrieves a student by ID, resolving the school/class
// pairing copied onto attendance entries.
func (r *StudentRepository) GetStudentByID(ctx context.Context, id int64) (*models.Student, error) {
	sql, args, err := r.sb.Select("id", "school_id", "class_id", "code", "name", "active").
		From("students").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get student by ID SQL")
		return nil, fmt.Errorf("failed to build get student query: %w", err)
	}

	student := &models.Student{}
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&student.ID, &student.SchoolID, &student.ClassID, &student.Code, &student.Name, &student.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrStudentNotFound
		}
		logger.Error().Err(err).Int64("studentID", id).Msg("Error scanning student row")
		return nil, apperrors.NewStorageError("get student by id", err)
	}
	return student, nil
}

// ListActiveStudents retrieves every active student, ordered by class then
// student code. The auto-mark batch walks this list.
func (r *StudentRepository) ListActiveStudents(ctx context.Context) ([]*models.Student, error) {
	sql, args, err := r.sb.Select("id", "school_id", "class_id", "code", "name", "active").
		From("students").
		Where(squirrel.Eq{"active": true}).
		OrderBy("class_id ASC", "code ASC").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list active students SQL")
		return nil, fmt.Errorf("failed to build list active students query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list active students query")
		return nil, apperrors.NewStorageError("list active students", err)
	}
	defer rows.Close()

	students := []*models.Student{}
	for rows.Next() {
		student := &models.Student{}
		if err := rows.Scan(&student.ID, &student.SchoolID, &student.ClassID, &student.Code, &student.Name, &student.Active); err != nil {
			return nil, apperrors.NewStorageError("scan student row", err)
		}
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list active students", err)
	}
	return students, nil
}
