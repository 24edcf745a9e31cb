package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"trainingtracker/internal/database"
	"trainingtracker/internal/models"
)

// ProgressRepository persists per-user lesson and module progress
type ProgressRepository struct {
	db *database.DB
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db *database.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// InsertLessonProgressIfMissing creates the (user, lesson) row with the given status.
// An existing row is left untouched. Reports whether a row was created.
func (r *ProgressRepository) InsertLessonProgressIfMissing(ctx context.Context, userID, lessonID int64, status models.LessonStatus, now time.Time) (bool, error) {
	query := `INSERT INTO user_lesson_progress (user_id, lesson_id, status, updated_at) VALUES (?, ?, ?, ?)` +
		r.db.Dialect.OnConflictDoNothing("user_id", "lesson_id")

	result, err := r.db.ExecContext(ctx, query, userID, lessonID, status, now)
	if err != nil {
		return false, fmt.Errorf("failed to insert lesson progress: %w", err)
	}
	return affected(result)
}

// PromoteLessonStatus moves a lesson row from one status to another.
// Nothing happens unless the row currently holds from.
func (r *ProgressRepository) PromoteLessonStatus(ctx context.Context, userID, lessonID int64, from, to models.LessonStatus, now time.Time) (bool, error) {
	query := `
		UPDATE user_lesson_progress
		SET status = ?, updated_at = ?
		WHERE user_id = ? AND lesson_id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query, to, now, userID, lessonID, from)
	if err != nil {
		return false, fmt.Errorf("failed to update lesson progress: %w", err)
	}
	return affected(result)
}

// MarkLessonCompleted sets the row to completed and stamps completed_at.
// A row that is already completed keeps its original completion time.
func (r *ProgressRepository) MarkLessonCompleted(ctx context.Context, userID, lessonID int64, now time.Time) (bool, error) {
	query := `
		UPDATE user_lesson_progress
		SET status = ?, completed_at = ?, updated_at = ?
		WHERE user_id = ? AND lesson_id = ? AND status <> ?
	`

	result, err := r.db.ExecContext(ctx, query, models.LessonCompleted, now, now, userID, lessonID, models.LessonCompleted)
	if err != nil {
		return false, fmt.Errorf("failed to complete lesson: %w", err)
	}
	return affected(result)
}

// GetLessonProgress retrieves a single lesson progress row. Returns nil when none exists.
func (r *ProgressRepository) GetLessonProgress(ctx context.Context, userID, lessonID int64) (*models.LessonProgress, error) {
	query := `
		SELECT user_id, lesson_id, status, completed_at, updated_at
		FROM user_lesson_progress
		WHERE user_id = ? AND lesson_id = ?
	`

	progress, err := scanLessonProgress(r.db.QueryRowContext(ctx, query, userID, lessonID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson progress: %w", err)
	}
	return progress, nil
}

// GetLessonProgressForModule lists the user's progress rows for every lesson of a module they have touched
func (r *ProgressRepository) GetLessonProgressForModule(ctx context.Context, userID, moduleID int64) ([]models.LessonProgress, error) {
	query := `
		SELECT p.user_id, p.lesson_id, p.status, p.completed_at, p.updated_at
		FROM user_lesson_progress p
		JOIN lessons l ON l.id = p.lesson_id
		WHERE p.user_id = ? AND l.module_id = ?
		ORDER BY l.order_in_module ASC, l.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lesson progress: %w", err)
	}
	defer rows.Close()

	var list []models.LessonProgress
	for rows.Next() {
		progress, err := scanLessonProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lesson progress: %w", err)
		}
		list = append(list, *progress)
	}

	return list, rows.Err()
}

// CountCompletedLessonsInModule counts the module's lessons the user has completed
func (r *ProgressRepository) CountCompletedLessonsInModule(ctx context.Context, userID, moduleID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM user_lesson_progress p
		JOIN lessons l ON l.id = p.lesson_id
		WHERE p.user_id = ? AND l.module_id = ? AND p.status = ?
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, moduleID, models.LessonCompleted).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count completed lessons: %w", err)
	}
	return count, nil
}

func scanLessonProgress(row interface{ Scan(...interface{}) error }) (*models.LessonProgress, error) {
	progress := &models.LessonProgress{}
	var completedAt sql.NullTime
	err := row.Scan(
		&progress.UserID,
		&progress.LessonID,
		&progress.Status,
		&completedAt,
		&progress.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		progress.CompletedAt = &completedAt.Time
	}
	return progress, nil
}

// InsertModuleProgressIfMissing creates the (user, module) row as not_started.
// An existing row is left untouched. Reports whether a row was created.
func (r *ProgressRepository) InsertModuleProgressIfMissing(ctx context.Context, userID, moduleID int64, now time.Time) (bool, error) {
	query := `INSERT INTO user_module_progress (user_id, module_id, status, updated_at) VALUES (?, ?, ?, ?)` +
		r.db.Dialect.OnConflictDoNothing("user_id", "module_id")

	result, err := r.db.ExecContext(ctx, query, userID, moduleID, models.ModuleNotStarted, now)
	if err != nil {
		return false, fmt.Errorf("failed to insert module progress: %w", err)
	}
	return affected(result)
}

// SetModuleStatus writes status when the current status is one of from (any status when from is empty).
// completion_date is stamped with now for completing statuses and cleared otherwise.
// Reports whether a row changed.
func (r *ProgressRepository) SetModuleStatus(ctx context.Context, userID, moduleID int64, status models.ModuleStatus, now time.Time, from ...models.ModuleStatus) (bool, error) {
	var completionDate interface{}
	if status.StampsCompletion() {
		completionDate = now
	}

	query := `
		UPDATE user_module_progress
		SET status = ?, completion_date = ?, updated_at = ?
		WHERE user_id = ? AND module_id = ?`
	args := []interface{}{status, completionDate, now, userID, moduleID}

	if len(from) > 0 {
		query += ` AND status IN (` + placeholders(len(from)) + `)`
		for _, s := range from {
			args = append(args, s)
		}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update module progress: %w", err)
	}
	return affected(result)
}

// GetModuleProgress retrieves a module progress row. Returns nil when none exists.
func (r *ProgressRepository) GetModuleProgress(ctx context.Context, userID, moduleID int64) (*models.ModuleProgress, error) {
	query := `
		SELECT user_id, module_id, status, completion_date, updated_at
		FROM user_module_progress
		WHERE user_id = ? AND module_id = ?
	`

	progress := &models.ModuleProgress{}
	var completionDate sql.NullTime
	err := r.db.QueryRowContext(ctx, query, userID, moduleID).Scan(
		&progress.UserID,
		&progress.ModuleID,
		&progress.Status,
		&completionDate,
		&progress.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get module progress: %w", err)
	}

	if completionDate.Valid {
		progress.CompletionDate = &completionDate.Time
	}
	return progress, nil
}

// ListModuleProgressForUser lists every module the user has started, with module details
func (r *ProgressRepository) ListModuleProgressForUser(ctx context.Context, userID int64) ([]models.ModuleProgressWithTitle, error) {
	query := `
		SELECT p.user_id, p.module_id, p.status, p.completion_date, p.updated_at,
		       m.title, m.status, m.deadline
		FROM user_module_progress p
		JOIN modules m ON m.id = p.module_id
		WHERE p.user_id = ?
		ORDER BY m.title ASC, m.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query module progress: %w", err)
	}
	defer rows.Close()

	var list []models.ModuleProgressWithTitle
	for rows.Next() {
		var item models.ModuleProgressWithTitle
		var completionDate, deadline sql.NullTime
		if err := rows.Scan(
			&item.UserID,
			&item.ModuleID,
			&item.Status,
			&completionDate,
			&item.UpdatedAt,
			&item.ModuleTitle,
			&item.ModuleStatus,
			&deadline,
		); err != nil {
			return nil, fmt.Errorf("failed to scan module progress: %w", err)
		}
		if completionDate.Valid {
			item.CompletionDate = &completionDate.Time
		}
		if deadline.Valid {
			item.Deadline = &deadline.Time
		}
		list = append(list, item)
	}

	return list, rows.Err()
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
