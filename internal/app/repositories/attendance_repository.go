package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veli/attendix/internal/app/models"
	"github.com/veli/attendix/internal/pkg/apperrors"
	"github.com/veli/attendix/internal/pkg/dberrors"
	"github.com/veli/attendix/internal/pkg/logger"
)

// Conflict targets matching the partial unique indexes in 001_init.sql.
// Period-scoped rows are unique per (student, date, period); whole-day rows
// are unique per (student, date, disamb_key). A conflicting insert from a
// concurrent caller converges into an update instead of failing.
const (
	onConflictPeriod = `ON CONFLICT (student_id, entry_date, period_id) WHERE period_id IS NOT NULL
		DO UPDATE SET status = EXCLUDED.status, leave_type_id = EXCLUDED.leave_type_id,
		details = EXCLUDED.details, disamb_key = EXCLUDED.disamb_key, note = EXCLUDED.note,
		source = EXCLUDED.source, source_ref = EXCLUDED.source_ref,
		informed_parent = EXCLUDED.informed_parent, updated_at = now()`
	onConflictWholeDay = `ON CONFLICT (student_id, entry_date, disamb_key) WHERE period_id IS NULL
		DO UPDATE SET status = EXCLUDED.status, leave_type_id = EXCLUDED.leave_type_id,
		details = EXCLUDED.details, note = EXCLUDED.note,
		source = EXCLUDED.source, source_ref = EXCLUDED.source_ref,
		informed_parent = EXCLUDED.informed_parent, updated_at = now()`
)

var entryColumns = []string{
	"id", "student_id", "school_id", "class_id", "entry_date", "period_id",
	"status", "leave_type_id", "details", "disamb_key", "note", "source",
	"source_ref", "informed_parent", "created_at", "updated_at",
}

// AttendanceRepository handles attendance entry database operations
type AttendanceRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewAttendanceRepository creates a new AttendanceRepository
func NewAttendanceRepository(db *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{
		db: db,
		sb: psql,
	}
}

// rowScanner abstracts pgx.Row and pgx.Rows for entry scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.AttendanceEntry, error) {
	e := &models.AttendanceEntry{}
	var details []byte
	err := row.Scan(
		&e.ID, &e.StudentID, &e.SchoolID, &e.ClassID, &e.EntryDate, &e.PeriodID,
		&e.Status, &e.LeaveTypeID, &details, &e.DisambKey, &e.Note, &e.Source,
		&e.SourceRef, &e.InformedParent, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		d := &models.EntryDetails{}
		if err := json.Unmarshal(details, d); err != nil {
			return nil, fmt.Errorf("error decoding entry details: %w", err)
		}
		e.Details = d
	}
	return e, nil
}

func marshalDetails(d *models.EntryDetails) (any, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("error encoding entry details: %w", err)
	}
	return b, nil
}

// UpsertEntry inserts the entry, or updates the row already occupying its
// slot. The slot is (student, date, period) for period-scoped entries and
// (student, date, disamb_key) for whole-day entries. Returns the post-write
// row.
func (r *AttendanceRepository) UpsertEntry(ctx context.Context, entry *models.AttendanceEntry) (*models.AttendanceEntry, error) {
	details, err := marshalDetails(entry.Details)
	if err != nil {
		return nil, err
	}

	conflict := onConflictWholeDay
	if entry.PeriodID != nil {
		conflict = onConflictPeriod
	}

	sql, args, err := r.sb.Insert("attendance_entries").
		Columns("student_id", "school_id", "class_id", "entry_date", "period_id",
			"status", "leave_type_id", "details", "disamb_key", "note", "source",
			"source_ref", "informed_parent").
		Values(entry.StudentID, entry.SchoolID, entry.ClassID, entry.EntryDate, entry.PeriodID,
			entry.Status, entry.LeaveTypeID, details, entry.DisambKey, entry.Note, entry.Source,
			entry.SourceRef, entry.InformedParent).
		Suffix(conflict + " RETURNING " + columnList()).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building upsert entry SQL")
		return nil, fmt.Errorf("failed to build upsert entry query: %w", err)
	}

	saved, err := scanEntry(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: entry references a missing row", apperrors.ErrResourceNotFound)
		}
		logger.Error().Err(err).Int64("studentID", entry.StudentID).Msg("Error executing upsert entry query")
		return nil, apperrors.NewStorageError("upsert attendance entry", err)
	}
	return saved, nil
}

// GetEntry retrieves the entry at the exact (student, date, period) slot.
// A nil periodID addresses the whole-day baseline slot (empty disamb key).
func (r *AttendanceRepository) GetEntry(ctx context.Context, studentID int64, date time.Time, periodID *int64) (*models.AttendanceEntry, error) {
	q := r.sb.Select(entryColumns...).
		From("attendance_entries").
		Where(squirrel.Eq{"student_id": studentID, "entry_date": date})
	if periodID != nil {
		q = q.Where(squirrel.Eq{"period_id": *periodID})
	} else {
		q = q.Where("period_id IS NULL").Where(squirrel.Eq{"disamb_key": ""})
	}

	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get entry SQL")
		return nil, fmt.Errorf("failed to build get entry query: %w", err)
	}

	entry, err := scanEntry(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrEntryNotFound
		}
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error scanning attendance entry row")
		return nil, apperrors.NewStorageError("get attendance entry", err)
	}
	return entry, nil
}

// FindWholeDayEntry retrieves the whole-day entry matching the leave type and
// disambiguation key, used by the disambiguated upsert path.
func (r *AttendanceRepository) FindWholeDayEntry(ctx context.Context, studentID int64, date time.Time, leaveTypeID *int64, disambKey string) (*models.AttendanceEntry, error) {
	q := r.sb.Select(entryColumns...).
		From("attendance_entries").
		Where(squirrel.Eq{"student_id": studentID, "entry_date": date, "disamb_key": disambKey}).
		Where("period_id IS NULL")
	if leaveTypeID != nil {
		q = q.Where(squirrel.Eq{"leave_type_id": *leaveTypeID})
	}

	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building find whole-day entry SQL")
		return nil, fmt.Errorf("failed to build find whole-day entry query: %w", err)
	}

	entry, err := scanEntry(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrEntryNotFound
		}
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error scanning whole-day entry row")
		return nil, apperrors.NewStorageError("find whole-day entry", err)
	}
	return entry, nil
}

// ListDayEntries returns every entry for (student, date): whole-day entries
// first, then period entries in schedule order (periods.position).
func (r *AttendanceRepository) ListDayEntries(ctx context.Context, studentID int64, date time.Time) ([]*models.AttendanceEntry, error) {
	cols := make([]string, len(entryColumns))
	for i, c := range entryColumns {
		cols[i] = "a." + c
	}
	sql, args, err := r.sb.Select(cols...).
		From("attendance_entries a").
		LeftJoin("periods p ON p.id = a.period_id").
		Where(squirrel.Eq{"a.student_id": studentID, "a.entry_date": date}).
		OrderBy("a.period_id IS NOT NULL", "a.disamb_key", "p.position", "a.period_id").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list day entries SQL")
		return nil, fmt.Errorf("failed to build list day entries query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error executing list day entries query")
		return nil, apperrors.NewStorageError("list day entries", err)
	}
	defer rows.Close()

	entries := []*models.AttendanceEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("scan day entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list day entries", err)
	}
	return entries, nil
}

// DeletePeriodEntries removes every period-scoped entry for (student, date).
// Used only by the full-day-exclusive cascade.
func (r *AttendanceRepository) DeletePeriodEntries(ctx context.Context, studentID int64, date time.Time) (int64, error) {
	sql, args, err := r.sb.Delete("attendance_entries").
		Where(squirrel.Eq{"student_id": studentID, "entry_date": date}).
		Where("period_id IS NOT NULL").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building delete period entries SQL")
		return 0, fmt.Errorf("failed to build delete period entries query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error executing delete period entries query")
		return 0, apperrors.NewStorageError("delete period entries", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteWholeDayEntriesExcept removes whole-day entries for (student, date)
// whose disambiguation key differs from keepKey.
func (r *AttendanceRepository) DeleteWholeDayEntriesExcept(ctx context.Context, studentID int64, date time.Time, keepKey string) (int64, error) {
	sql, args, err := r.sb.Delete("attendance_entries").
		Where(squirrel.Eq{"student_id": studentID, "entry_date": date}).
		Where("period_id IS NULL").
		Where(squirrel.NotEq{"disamb_key": keepKey}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building delete whole-day entries SQL")
		return 0, fmt.Errorf("failed to build delete whole-day entries query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error executing delete whole-day entries query")
		return 0, apperrors.NewStorageError("delete whole-day entries", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteEntry removes the entry at the exact (student, date, period) slot and
// reports whether a row was removed. It never cascades.
func (r *AttendanceRepository) DeleteEntry(ctx context.Context, studentID int64, date time.Time, periodID *int64) (bool, error) {
	q := r.sb.Delete("attendance_entries").
		Where(squirrel.Eq{"student_id": studentID, "entry_date": date})
	if periodID != nil {
		q = q.Where(squirrel.Eq{"period_id": *periodID})
	} else {
		q = q.Where("period_id IS NULL").Where(squirrel.Eq{"disamb_key": ""})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building delete entry SQL")
		return false, fmt.Errorf("failed to build delete entry query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error executing delete entry query")
		return false, apperrors.NewStorageError("delete attendance entry", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteEntriesBySourceRef removes every entry carrying the given source
// reference, used when a previously approved leave request is rejected.
func (r *AttendanceRepository) DeleteEntriesBySourceRef(ctx context.Context, sourceRef string) (int64, error) {
	sql, args, err := r.sb.Delete("attendance_entries").
		Where(squirrel.Eq{"source_ref": sourceRef}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building delete by source ref SQL")
		return 0, fmt.Errorf("failed to build delete by source ref query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Str("sourceRef", sourceRef).Msg("Error executing delete by source ref query")
		return 0, apperrors.NewStorageError("delete entries by source ref", err)
	}
	return tag.RowsAffected(), nil
}

// CountPeriodStatuses counts period-scoped entries per status within the
// inclusive date range. Whole-day baselines are excluded.
func (r *AttendanceRepository) CountPeriodStatuses(ctx context.Context, studentID int64, from, to time.Time) (map[models.Status]int, error) {
	sql, args, err := r.sb.Select("status", "COUNT(*)").
		From("attendance_entries").
		Where(squirrel.Eq{"student_id": studentID}).
		Where("period_id IS NOT NULL").
		Where(squirrel.GtOrEq{"entry_date": from}).
		Where(squirrel.LtOrEq{"entry_date": to}).
		GroupBy("status").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building count period statuses SQL")
		return nil, fmt.Errorf("failed to build count period statuses query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error executing count period statuses query")
		return nil, apperrors.NewStorageError("count period statuses", err)
	}
	defer rows.Close()

	counts := map[models.Status]int{}
	for rows.Next() {
		var status models.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, apperrors.NewStorageError("scan status count", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("count period statuses", err)
	}
	return counts, nil
}

// ListMarkedStudentIDs returns the IDs of students who already have at least
// one entry on the given date. The auto-mark batch skips them.
func (r *AttendanceRepository) ListMarkedStudentIDs(ctx context.Context, date time.Time) ([]int64, error) {
	sql, args, err := r.sb.Select("DISTINCT student_id").
		From("attendance_entries").
		Where(squirrel.Eq{"entry_date": date}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list marked students SQL")
		return nil, fmt.Errorf("failed to build list marked students query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list marked students query")
		return nil, apperrors.NewStorageError("list marked students", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewStorageError("scan marked student id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list marked students", err)
	}
	return ids, nil
}

func columnList() string {
	return strings.Join(entryColumns, ", ")
}
