package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-backend/internal/model"
	"github.com/stemsi/ielts-backend/internal/scoring"
)

var (
	ErrFeedbackDisabled = errors.New("AI feedback is not configured")
	ErrFeedbackPending  = errors.New("feedback is not ready yet")
)

// FeedbackService queues essay responses for AI grading and reports the
// stored results.
type FeedbackService struct {
	exams   ExamStore
	items   SkillItemStore
	store   FeedbackStore
	queue   FeedbackQueue
	enabled bool
	log     zerolog.Logger
	now     func() time.Time
}

// NewFeedbackService creates a new FeedbackService. When enabled is false
// grading requests are refused but stored feedback can still be read.
func NewFeedbackService(exams ExamStore, items SkillItemStore, store FeedbackStore, queue FeedbackQueue, enabled bool, log zerolog.Logger) *FeedbackService {
	return &FeedbackService{
		exams:   exams,
		items:   items,
		store:   store,
		queue:   queue,
		enabled: enabled,
		log:     log.With().Str("component", "feedback_service").Logger(),
		now:     time.Now,
	}
}

// RequestGrading validates that every answer targets a writing or speaking
// item of the exam and queues one job for them.
func (s *FeedbackService) RequestGrading(ctx context.Context, req *model.GradeWritingRequest, userID int) error {
	if !s.enabled || s.queue == nil {
		return ErrFeedbackDisabled
	}
	if userID <= 0 {
		return ErrUnauthenticated
	}

	if _, err := s.exams.GetByID(ctx, req.ExamID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrExamNotFound
		}
		return fmt.Errorf("get exam: %w", err)
	}

	items, err := s.items.ListByExam(ctx, req.ExamID, "")
	if err != nil {
		return fmt.Errorf("list skill items: %w", err)
	}
	essay := make(map[int]bool, len(items))
	for _, it := range items {
		if it.Kind == model.SkillWriting || it.Kind == model.SkillSpeaking {
			essay[it.ID] = true
		}
	}
	for _, a := range req.Answers {
		if !essay[a.SkillID] {
			return fmt.Errorf("%w: %d", ErrEssayItemNotFound, a.SkillID)
		}
	}

	job := &model.FeedbackJob{
		ExamID:     req.ExamID,
		UserID:     userID,
		Answers:    req.Answers,
		EnqueuedAt: s.now(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue feedback: %w", err)
	}

	s.log.Info().Int("exam_id", req.ExamID).Int("user_id", userID).Int("answers", len(req.Answers)).Msg("Feedback requested")
	return nil
}

// Report returns the user's feedback for an exam with the mean overall band.
func (s *FeedbackService) Report(ctx context.Context, examID, userID int) (*model.FeedbackReport, error) {
	list, err := s.store.ListByExamUser(ctx, examID, userID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	if len(list) == 0 {
		return nil, ErrFeedbackPending
	}

	bands := make([]float64, len(list))
	for i, f := range list {
		bands[i] = f.Overall
	}

	return &model.FeedbackReport{
		ExamID:         examID,
		UserID:         userID,
		Feedbacks:      list,
		AverageOverall: scoring.AverageBand(bands),
	}, nil
}
