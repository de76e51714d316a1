package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/ielts-backend/internal/model"
)

// FeedbackRepository handles AI writing feedback data access.
type FeedbackRepository struct {
	pool *pgxpool.Pool
}

// NewFeedbackRepository creates a new FeedbackRepository.
func NewFeedbackRepository(pool *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{pool: pool}
}

// Upsert stores feedback for one response; a regrade replaces the previous row.
func (r *FeedbackRepository) Upsert(ctx context.Context, f *model.WritingFeedback) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO writing_feedback (exam_id, user_id, skill_item_id, answer_text, overall,
		        task_achievement, coherence_cohesion, lexical_resource, grammar_accuracy,
		        grammar_vocab_json, feedback_sections)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (user_id, skill_item_id) DO UPDATE SET
		     exam_id = EXCLUDED.exam_id,
		     answer_text = EXCLUDED.answer_text,
		     overall = EXCLUDED.overall,
		     task_achievement = EXCLUDED.task_achievement,
		     coherence_cohesion = EXCLUDED.coherence_cohesion,
		     lexical_resource = EXCLUDED.lexical_resource,
		     grammar_accuracy = EXCLUDED.grammar_accuracy,
		     grammar_vocab_json = EXCLUDED.grammar_vocab_json,
		     feedback_sections = EXCLUDED.feedback_sections,
		     created_at = NOW()
		 RETURNING id, created_at`,
		f.ExamID, f.UserID, f.SkillID, f.AnswerText, f.Overall,
		f.TaskAchievement, f.CoherenceCohesion, f.LexicalResource, f.GrammarAccuracy,
		[]byte(f.GrammarVocabJSON), []byte(f.FeedbackSections),
	).Scan(&f.ID, &f.CreatedAt)
}

// ListByExamUser returns a user's feedback for an exam in item order.
func (r *FeedbackRepository) ListByExamUser(ctx context.Context, examID, userID int) ([]model.WritingFeedback, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT f.id, f.exam_id, f.user_id, f.skill_item_id, f.answer_text,
		        f.overall::float8, f.task_achievement::float8, f.coherence_cohesion::float8,
		        f.lexical_resource::float8, f.grammar_accuracy::float8,
		        f.grammar_vocab_json, f.feedback_sections, f.created_at
		 FROM writing_feedback f
		 LEFT JOIN skill_items s ON s.id = f.skill_item_id
		 WHERE f.exam_id = $1 AND f.user_id = $2
		 ORDER BY s.display_order NULLS LAST, f.skill_item_id`, examID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.WritingFeedback, 0)
	for rows.Next() {
		var (
			f            model.WritingFeedback
			grammarVocab []byte
			sections     []byte
		)
		if err := rows.Scan(&f.ID, &f.ExamID, &f.UserID, &f.SkillID, &f.AnswerText,
			&f.Overall, &f.TaskAchievement, &f.CoherenceCohesion,
			&f.LexicalResource, &f.GrammarAccuracy,
			&grammarVocab, &sections, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.GrammarVocabJSON = grammarVocab
		f.FeedbackSections = sections
		out = append(out, f)
	}
	return out, rows.Err()
}
