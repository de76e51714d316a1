package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/ielts-backend/internal/model"
)

const skillItemColumns = `id, exam_id, kind, content, question_markup, item_type,
	display_order, correct_answer, question_html, created_at`

// SkillItemRepository handles skill item data access.
type SkillItemRepository struct {
	pool *pgxpool.Pool
}

// NewSkillItemRepository creates a new SkillItemRepository.
func NewSkillItemRepository(pool *pgxpool.Pool) *SkillItemRepository {
	return &SkillItemRepository{pool: pool}
}

func scanSkillItem(row pgx.Row, it *model.SkillItem) error {
	return row.Scan(&it.ID, &it.ExamID, &it.Kind, &it.Content, &it.QuestionMarkup, &it.ItemType,
		&it.DisplayOrder, &it.CorrectAnswer, &it.QuestionHTML, &it.CreatedAt)
}

// ListByExam returns an exam's items in display order. An empty kind
// returns items of every kind.
func (r *SkillItemRepository) ListByExam(ctx context.Context, examID int, kind model.SkillKind) ([]model.SkillItem, error) {
	query := `SELECT ` + skillItemColumns + ` FROM skill_items WHERE exam_id = $1`
	args := []interface{}{examID}
	if kind != "" {
		query += ` AND kind = $2`
		args = append(args, kind)
	}
	query += ` ORDER BY display_order, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.SkillItem, 0)
	for rows.Next() {
		var it model.SkillItem
		if err := scanSkillItem(rows, &it); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetByID retrieves one skill item.
func (r *SkillItemRepository) GetByID(ctx context.Context, id int) (*model.SkillItem, error) {
	it := &model.SkillItem{}
	row := r.pool.QueryRow(ctx, `SELECT `+skillItemColumns+` FROM skill_items WHERE id = $1`, id)
	if err := scanSkillItem(row, it); err != nil {
		return nil, err
	}
	return it, nil
}

// Create inserts a new skill item.
func (r *SkillItemRepository) Create(ctx context.Context, it *model.SkillItem) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO skill_items (exam_id, kind, content, question_markup, item_type,
		                          display_order, correct_answer, question_html)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		it.ExamID, it.Kind, it.Content, it.QuestionMarkup, it.ItemType,
		it.DisplayOrder, it.CorrectAnswer, it.QuestionHTML,
	).Scan(&it.ID, &it.CreatedAt)
}

// Update overwrites the mutable columns of a skill item.
func (r *SkillItemRepository) Update(ctx context.Context, it *model.SkillItem) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE skill_items
		 SET content = $1, question_markup = $2, item_type = $3, display_order = $4,
		     correct_answer = $5, question_html = $6
		 WHERE id = $7`,
		it.Content, it.QuestionMarkup, it.ItemType, it.DisplayOrder,
		it.CorrectAnswer, it.QuestionHTML, it.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes a skill item.
func (r *SkillItemRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM skill_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
