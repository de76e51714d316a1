package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-backend/internal/markup"
	"github.com/stemsi/ielts-backend/internal/model"
)

var (
	ErrItemNotFound = errors.New("skill item not found")
	ErrItemLocked   = errors.New("skill item is referenced by scored attempts")
)

// SkillItemService manages the skill items of an exam. Question markup is
// compiled into canonical answers and HTML when the author does not supply
// them explicitly.
type SkillItemService struct {
	exams    ExamStore
	items    SkillItemStore
	attempts AttemptStore
	cache    ExamCache
	log      zerolog.Logger
}

// NewSkillItemService creates a new SkillItemService. cache may be nil.
func NewSkillItemService(exams ExamStore, items SkillItemStore, attempts AttemptStore, cache ExamCache, log zerolog.Logger) *SkillItemService {
	return &SkillItemService{
		exams:    exams,
		items:    items,
		attempts: attempts,
		cache:    cache,
		log:      log.With().Str("component", "skill_item_service").Logger(),
	}
}

// ListByExam returns the exam's items of one kind, or of every kind when
// kind is empty.
func (s *SkillItemService) ListByExam(ctx context.Context, examID int, kind string) ([]model.SkillItem, error) {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	items, err := s.items.ListByExam(ctx, examID, model.SkillKind(strings.ToLower(kind)))
	if err != nil {
		return nil, fmt.Errorf("list skill items: %w", err)
	}
	return items, nil
}

// GetByID returns one skill item.
func (s *SkillItemService) GetByID(ctx context.Context, id int) (*model.SkillItem, error) {
	it, err := s.items.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get skill item: %w", err)
	}
	return it, nil
}

// Create adds an item to an exam.
func (s *SkillItemService) Create(ctx context.Context, examID int, req *model.CreateSkillItemRequest) (*model.SkillItem, error) {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	it := &model.SkillItem{
		ExamID:         examID,
		Kind:           model.SkillKind(strings.ToLower(req.Kind)),
		Content:        req.Content,
		QuestionMarkup: req.QuestionMarkup,
		ItemType:       req.ItemType,
		DisplayOrder:   req.DisplayOrder,
		CorrectAnswer:  req.CorrectAnswer,
		QuestionHTML:   req.QuestionHTML,
	}
	if err := compileInto(it, req.CorrectAnswer == nil, req.QuestionHTML == nil); err != nil {
		return nil, err
	}

	if err := s.items.Create(ctx, it); err != nil {
		return nil, fmt.Errorf("create skill item: %w", err)
	}
	s.invalidate(ctx, examID)

	s.log.Info().Int("item_id", it.ID).Int("exam_id", examID).Str("kind", string(it.Kind)).Msg("Skill item created")
	return it, nil
}

// Update applies a partial update. Changes that affect scoring are refused
// once the exam has attempts.
func (s *SkillItemService) Update(ctx context.Context, id int, req *model.UpdateSkillItemRequest) (*model.SkillItem, error) {
	it, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.TouchesAnswers() {
		if err := s.ensureUnlocked(ctx, it.ExamID); err != nil {
			return nil, err
		}
	}

	if req.Content != nil {
		it.Content = *req.Content
	}
	if req.ItemType != nil {
		it.ItemType = *req.ItemType
	}
	if req.DisplayOrder != nil {
		it.DisplayOrder = *req.DisplayOrder
	}
	if req.CorrectAnswer != nil {
		it.CorrectAnswer = req.CorrectAnswer
	}
	if req.QuestionHTML != nil {
		it.QuestionHTML = req.QuestionHTML
	}
	if req.QuestionMarkup != nil {
		it.QuestionMarkup = *req.QuestionMarkup
		if it.QuestionMarkup == "" {
			// Answers derived from the removed markup must not keep scoring.
			if req.CorrectAnswer == nil {
				it.CorrectAnswer = nil
			}
			if req.QuestionHTML == nil {
				it.QuestionHTML = nil
			}
		} else if err := compileInto(it, req.CorrectAnswer == nil, req.QuestionHTML == nil); err != nil {
			return nil, err
		}
	}

	if err := s.items.Update(ctx, it); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("update skill item: %w", err)
	}
	s.invalidate(ctx, it.ExamID)

	return it, nil
}

// Delete removes an item from an exam without attempts.
func (s *SkillItemService) Delete(ctx context.Context, id int) error {
	it, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensureUnlocked(ctx, it.ExamID); err != nil {
		return err
	}

	if err := s.items.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrItemNotFound
		}
		return fmt.Errorf("delete skill item: %w", err)
	}
	s.invalidate(ctx, it.ExamID)
	return nil
}

// Preview renders markup and lists its canonical answers without storing anything.
func (s *SkillItemService) Preview(src string, reveal bool) (*model.RenderMarkupResponse, error) {
	doc := markup.Parse(src)
	out, err := doc.Render(reveal)
	if err != nil {
		return nil, fmt.Errorf("render markup: %w", err)
	}
	answers, err := json.Marshal(doc.Answers())
	if err != nil {
		return nil, fmt.Errorf("marshal answers: %w", err)
	}
	return &model.RenderMarkupResponse{HTML: out, Answers: answers}, nil
}

func (s *SkillItemService) ensureUnlocked(ctx context.Context, examID int) error {
	n, err := s.attempts.CountByExam(ctx, examID)
	if err != nil {
		return fmt.Errorf("count attempts: %w", err)
	}
	if n > 0 {
		return ErrItemLocked
	}
	return nil
}

func (s *SkillItemService) invalidate(ctx context.Context, examID int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, examID); err != nil {
		s.log.Warn().Err(err).Int("exam_id", examID).Msg("Exam cache invalidation failed")
	}
}

// compileInto derives the canonical answers and/or HTML of an item from its
// question markup. Items without markup are left untouched.
func compileInto(it *model.SkillItem, answers, html bool) error {
	if it.QuestionMarkup == "" || (!answers && !html) {
		return nil
	}

	compiled, err := markup.Compile(it.QuestionMarkup)
	if err != nil {
		return fmt.Errorf("compile markup: %w", err)
	}

	if answers {
		raw, err := json.Marshal(compiled.Answers)
		if err != nil {
			return fmt.Errorf("marshal answers: %w", err)
		}
		s := string(raw)
		it.CorrectAnswer = &s
	}
	if html {
		h := compiled.HTML
		it.QuestionHTML = &h
	}
	return nil
}
