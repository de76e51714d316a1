package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/ielts-backend/internal/model"
)

// AttemptRepository handles exam attempt data access. Attempts are insert-only.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts an attempt in a single statement.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_attempts (exam_id, user_id, started_at, submitted_at, score, answer_text)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		a.ExamID, a.UserID, a.StartedAt, a.SubmittedAt, a.Score, a.AnswerText,
	).Scan(&a.ID)
}

// GetByID retrieves one attempt joined with its exam.
func (r *AttemptRepository) GetByID(ctx context.Context, id int64) (*model.AttemptResult, error) {
	res := &model.AttemptResult{}
	err := r.pool.QueryRow(ctx,
		`SELECT a.id, a.user_id, a.started_at, a.submitted_at, a.exam_id,
		        e.name, e.type, a.score::float8, a.answer_text
		 FROM exam_attempts a
		 JOIN exams e ON e.id = a.exam_id
		 WHERE a.id = $1`, id,
	).Scan(&res.AttemptID, &res.UserID, &res.StartedAt, &res.SubmittedAt, &res.ExamID,
		&res.ExamName, &res.ExamType, &res.TotalScore, &res.AnswerText)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListByUser returns a user's attempts, newest first, and the total count.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID, limit, offset int) ([]model.AttemptResult, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_attempts WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.user_id, a.started_at, a.submitted_at, a.exam_id,
		        e.name, e.type, a.score::float8, a.answer_text
		 FROM exam_attempts a
		 JOIN exams e ON e.id = a.exam_id
		 WHERE a.user_id = $1
		 ORDER BY a.submitted_at DESC, a.id DESC
		 LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.AttemptResult, 0, limit)
	for rows.Next() {
		var res model.AttemptResult
		if err := rows.Scan(&res.AttemptID, &res.UserID, &res.StartedAt, &res.SubmittedAt, &res.ExamID,
			&res.ExamName, &res.ExamType, &res.TotalScore, &res.AnswerText); err != nil {
			return nil, 0, err
		}
		out = append(out, res)
	}
	return out, total, rows.Err()
}

// CountByExam returns how many attempts reference an exam.
func (r *AttemptRepository) CountByExam(ctx context.Context, examID int) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_attempts WHERE exam_id = $1`, examID,
	).Scan(&n)
	return n, err
}
