package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"trainingtracker/internal/database"
	"trainingtracker/internal/models"
)

// ErrAnswerNotInQuestion is returned when an answer is assigned to a question it does not belong to
var ErrAnswerNotInQuestion = errors.New("answer does not belong to question")

// CatalogRepository reads (and minimally authors) modules, lessons, quizzes, questions and answers
type CatalogRepository struct {
	db *database.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *database.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetModuleByID retrieves a module by ID. Returns nil when it does not exist.
func (r *CatalogRepository) GetModuleByID(ctx context.Context, moduleID int64) (*models.Module, error) {
	query := `
		SELECT id, title, description, status, deadline, created_at, updated_at
		FROM modules
		WHERE id = ?
	`

	module := &models.Module{}
	var deadline sql.NullTime
	err := r.db.QueryRowContext(ctx, query, moduleID).Scan(
		&module.ID,
		&module.Title,
		&module.Description,
		&module.Status,
		&deadline,
		&module.CreatedAt,
		&module.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get module: %w", err)
	}

	if deadline.Valid {
		module.Deadline = &deadline.Time
	}
	return module, nil
}

// CreateModule inserts a module and sets its ID
func (r *CatalogRepository) CreateModule(ctx context.Context, module *models.Module) error {
	query := `INSERT INTO modules (title, description, status, deadline) VALUES (?, ?, ?, ?)`

	var deadline interface{}
	if module.Deadline != nil {
		deadline = module.Deadline.UTC()
	}

	id, err := r.db.ExecReturningID(ctx, query, module.Title, module.Description, module.Status, deadline)
	if err != nil {
		return fmt.Errorf("failed to create module: %w", err)
	}
	module.ID = id
	return nil
}

const lessonColumns = `id, module_id, title, content_type, content_text, content_url, order_in_module`

func scanLesson(row interface{ Scan(...interface{}) error }) (*models.Lesson, error) {
	lesson := &models.Lesson{}
	err := row.Scan(
		&lesson.ID,
		&lesson.ModuleID,
		&lesson.Title,
		&lesson.ContentType,
		&lesson.ContentText,
		&lesson.ContentURL,
		&lesson.OrderInModule,
	)
	return lesson, err
}

// GetLessonByID retrieves a lesson by ID. Returns nil when it does not exist.
func (r *CatalogRepository) GetLessonByID(ctx context.Context, lessonID int64) (*models.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = ?`

	lesson, err := scanLesson(r.db.QueryRowContext(ctx, query, lessonID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	return lesson, nil
}

// GetLessonsByModuleID retrieves a module's lessons in display order
func (r *CatalogRepository) GetLessonsByModuleID(ctx context.Context, moduleID int64) ([]models.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		WHERE module_id = ?
		ORDER BY order_in_module ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	var lessons []models.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		lessons = append(lessons, *lesson)
	}

	return lessons, rows.Err()
}

// CountLessonsInModule returns the number of lessons in a module
func (r *CatalogRepository) CountLessonsInModule(ctx context.Context, moduleID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lessons WHERE module_id = ?`, moduleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count lessons: %w", err)
	}
	return count, nil
}

// CreateLesson inserts a lesson
func (r *CatalogRepository) CreateLesson(ctx context.Context, lesson *models.Lesson) error {
	query := `
		INSERT INTO lessons (module_id, title, content_type, content_text, content_url, order_in_module)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	id, err := r.db.ExecReturningID(ctx, query,
		lesson.ModuleID, lesson.Title, lesson.ContentType, lesson.ContentText, lesson.ContentURL, lesson.OrderInModule)
	if err != nil {
		return fmt.Errorf("failed to create lesson: %w", err)
	}
	lesson.ID = id
	return nil
}

const quizColumns = `id, module_id, title, description, passing_threshold, cooldown_period_hours`

func scanQuiz(row interface{ Scan(...interface{}) error }) (*models.Quiz, error) {
	quiz := &models.Quiz{}
	err := row.Scan(
		&quiz.ID,
		&quiz.ModuleID,
		&quiz.Title,
		&quiz.Description,
		&quiz.PassingThreshold,
		&quiz.CooldownPeriodHours,
	)
	return quiz, err
}

// GetQuizByID retrieves a quiz by ID. Returns nil when it does not exist.
func (r *CatalogRepository) GetQuizByID(ctx context.Context, quizID int64) (*models.Quiz, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes WHERE id = ?`

	quiz, err := scanQuiz(r.db.QueryRowContext(ctx, query, quizID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	return quiz, nil
}

// GetQuizzesByModuleID retrieves the quizzes attached to a module (at most one in practice)
func (r *CatalogRepository) GetQuizzesByModuleID(ctx context.Context, moduleID int64) ([]models.Quiz, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes WHERE module_id = ? ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []models.Quiz
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quiz: %w", err)
		}
		quizzes = append(quizzes, *quiz)
	}

	return quizzes, rows.Err()
}

// CreateQuiz inserts a quiz
func (r *CatalogRepository) CreateQuiz(ctx context.Context, quiz *models.Quiz) error {
	query := `
		INSERT INTO quizzes (module_id, title, description, passing_threshold, cooldown_period_hours)
		VALUES (?, ?, ?, ?, ?)
	`

	id, err := r.db.ExecReturningID(ctx, query,
		quiz.ModuleID, quiz.Title, quiz.Description, quiz.PassingThreshold, quiz.CooldownPeriodHours)
	if err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}
	quiz.ID = id
	return nil
}

// GetQuestionsByQuizID retrieves a quiz's questions in display order
func (r *CatalogRepository) GetQuestionsByQuizID(ctx context.Context, quizID int64) ([]models.Question, error) {
	query := `
		SELECT id, quiz_id, question_text, question_type, order_in_quiz
		FROM questions
		WHERE quiz_id = ?
		ORDER BY order_in_quiz ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Text, &q.Type, &q.OrderInQuiz); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}

	return questions, rows.Err()
}

// CreateQuestionWithAnswers inserts a question and its options in one transaction.
// IDs are filled in on success. Nothing is stored if any insert fails.
func (r *CatalogRepository) CreateQuestionWithAnswers(ctx context.Context, question *models.Question, answers []models.Answer) error {
	if question.Type == "" {
		question.Type = models.SingleChoice
	}

	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := insertQuestion(ctx, tx, question); err != nil {
			return err
		}
		for i := range answers {
			answers[i].QuestionID = question.ID
			if err := insertAnswer(ctx, tx, &answers[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertQuestion(ctx context.Context, conn database.DBTX, question *models.Question) error {
	query := `INSERT INTO questions (quiz_id, question_text, question_type, order_in_quiz) VALUES (?, ?, ?, ?)`

	id, err := conn.ExecReturningID(ctx, query, question.QuizID, question.Text, question.Type, question.OrderInQuiz)
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	question.ID = id
	return nil
}

// GetAnswerByID retrieves an answer by ID. Returns nil when it does not exist.
func (r *CatalogRepository) GetAnswerByID(ctx context.Context, answerID int64) (*models.Answer, error) {
	query := `SELECT id, question_id, answer_text, is_correct FROM answers WHERE id = ?`

	answer := &models.Answer{}
	err := r.db.QueryRowContext(ctx, query, answerID).Scan(
		&answer.ID,
		&answer.QuestionID,
		&answer.Text,
		&answer.IsCorrect,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}
	return answer, nil
}

// GetAnswersByQuestionID retrieves all options of a question
func (r *CatalogRepository) GetAnswersByQuestionID(ctx context.Context, questionID int64) ([]models.Answer, error) {
	query := `
		SELECT id, question_id, answer_text, is_correct
		FROM answers
		WHERE question_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query answers: %w", err)
	}
	defer rows.Close()

	var answers []models.Answer
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Text, &a.IsCorrect); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		answers = append(answers, a)
	}

	return answers, rows.Err()
}

func insertAnswer(ctx context.Context, conn database.DBTX, answer *models.Answer) error {
	query := `INSERT INTO answers (question_id, answer_text, is_correct) VALUES (?, ?, ?)`

	id, err := conn.ExecReturningID(ctx, query, answer.QuestionID, answer.Text, answer.IsCorrect)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}
	answer.ID = id
	return nil
}

// SetCorrectAnswer makes answerID the only correct option of questionID.
// Both updates run in one transaction so no reader sees zero or two correct answers.
func (r *CatalogRepository) SetCorrectAnswer(ctx context.Context, questionID, answerID int64) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		var owner int64
		err := tx.QueryRowContext(ctx, `SELECT question_id FROM answers WHERE id = ?`, answerID).Scan(&owner)
		if err == sql.ErrNoRows || (err == nil && owner != questionID) {
			return ErrAnswerNotInQuestion
		}
		if err != nil {
			return fmt.Errorf("failed to look up answer: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE answers SET is_correct = ? WHERE question_id = ?`, false, questionID); err != nil {
			return fmt.Errorf("failed to clear correct answers: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE answers SET is_correct = ? WHERE id = ?`, true, answerID); err != nil {
			return fmt.Errorf("failed to set correct answer: %w", err)
		}
		return nil
	})
}
