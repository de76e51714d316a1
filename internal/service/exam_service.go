package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-backend/internal/metrics"
	"github.com/stemsi/ielts-backend/internal/model"
	"github.com/stemsi/ielts-backend/internal/repository"
	"github.com/stemsi/ielts-backend/internal/response"
	"github.com/stemsi/ielts-backend/internal/scoring"
)

// Domain Errors
var (
	ErrEmptyAnswer       = errors.New("answer text is empty")
	ErrUnauthenticated   = errors.New("authenticated user required")
	ErrExamNotFound      = errors.New("exam not found")
	ErrExamHasAttempts   = errors.New("exam has attempts and cannot be deleted")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrAttemptForbidden  = errors.New("attempt belongs to another user")
	ErrEssayItemNotFound = errors.New("writing or speaking item not found in exam")
)

// ExamService assembles exams from their skill items and scores submissions.
type ExamService struct {
	exams    ExamStore
	items    SkillItemStore
	attempts AttemptStore
	cache    ExamCache
	feedback FeedbackQueue
	log      zerolog.Logger
	now      func() time.Time
}

// NewExamService creates a new ExamService. cache may be nil.
func NewExamService(
	exams ExamStore,
	items SkillItemStore,
	attempts AttemptStore,
	cache ExamCache,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		exams:    exams,
		items:    items,
		attempts: attempts,
		cache:    cache,
		log:      log.With().Str("component", "exam_service").Logger(),
		now:      time.Now,
	}
}

// WithFeedbackQueue makes writing and speaking submissions enqueue AI
// feedback jobs.
func (s *ExamService) WithFeedbackQueue(q FeedbackQueue) *ExamService {
	s.feedback = q
	return s
}

// GetByID returns an exam with its skill items of every kind, reading
// through the cache.
func (s *ExamService) GetByID(ctx context.Context, id int) (*model.Exam, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Int("exam_id", id).Msg("Exam cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	exam, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, exam); err != nil {
			s.log.Warn().Err(err).Int("exam_id", id).Msg("Exam cache write failed")
		}
	}
	return exam, nil
}

func (s *ExamService) load(ctx context.Context, id int) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	items, err := s.items.ListByExam(ctx, id, "")
	if err != nil {
		return nil, fmt.Errorf("list skill items: %w", err)
	}
	exam.Items = items
	return exam, nil
}

// GetAll returns a page of exams, each with its skill items.
func (s *ExamService) GetAll(ctx context.Context, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	p := response.NewPagination(page, perPage, 0)

	exams, total, err := s.exams.List(ctx, p.PerPage, p.Offset())
	if err != nil {
		return nil, nil, fmt.Errorf("list exams: %w", err)
	}

	for i := range exams {
		items, err := s.items.ListByExam(ctx, exams[i].ID, "")
		if err != nil {
			return nil, nil, fmt.Errorf("list skill items for exam %d: %w", exams[i].ID, err)
		}
		exams[i].Items = items
	}

	return exams, response.NewPagination(p.Page, p.PerPage, total), nil
}

// Create inserts a new exam.
func (s *ExamService) Create(ctx context.Context, req *model.CreateExamRequest) (*model.Exam, error) {
	exam := &model.Exam{
		Name:  strings.TrimSpace(req.Name),
		Type:  model.ExamType(strings.ToLower(req.Type)),
		Items: []model.SkillItem{},
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	s.log.Info().Int("exam_id", exam.ID).Str("type", string(exam.Type)).Msg("Exam created")
	return exam, nil
}

// Update changes an exam's name or type.
func (s *ExamService) Update(ctx context.Context, id int, req *model.UpdateExamRequest) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	if req.Name != "" {
		exam.Name = strings.TrimSpace(req.Name)
	}
	if req.Type != "" {
		exam.Type = model.ExamType(strings.ToLower(req.Type))
	}

	if err := s.exams.Update(ctx, exam); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("update exam: %w", err)
	}
	s.invalidate(ctx, id)

	return s.GetByID(ctx, id)
}

// Delete removes an exam that has no attempts.
func (s *ExamService) Delete(ctx context.Context, id int) error {
	if err := s.exams.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return ErrExamNotFound
		case errors.Is(err, repository.ErrExamInUse):
			return ErrExamHasAttempts
		}
		return fmt.Errorf("delete exam: %w", err)
	}
	s.invalidate(ctx, id)

	s.log.Info().Int("exam_id", id).Msg("Exam deleted")
	return nil
}

// SubmitAttempt scores a submission and stores it as a new attempt. Reading
// and listening exams are scored against their items of the same kind; any
// other exam type scores 0 here and, for writing and speaking, is handed to
// the AI feedback queue.
func (s *ExamService) SubmitAttempt(ctx context.Context, req *model.SubmitAttemptRequest, userID int) (*model.AttemptResult, error) {
	if req.AnswerText == "" {
		return nil, ErrEmptyAnswer
	}
	if userID <= 0 {
		return nil, ErrUnauthenticated
	}

	exam, err := s.GetByID(ctx, req.ExamID)
	if err != nil {
		return nil, err
	}

	result := Score(exam, req.AnswerText)

	now := s.now()
	startedAt := now
	if req.StartedAt != nil && !req.StartedAt.IsZero() {
		startedAt = *req.StartedAt
	}

	attempt := &model.Attempt{
		ExamID:      exam.ID,
		UserID:      userID,
		StartedAt:   startedAt,
		SubmittedAt: now,
		Score:       result.Score,
		AnswerText:  req.AnswerText,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	metrics.ObserveSubmission(string(exam.Type), attempt.Score)
	s.log.Info().
		Int64("attempt_id", attempt.ID).
		Int("exam_id", exam.ID).
		Int("user_id", userID).
		Int("correct", result.Correct).
		Int("total", result.Total).
		Float64("score", attempt.Score).
		Msg("Attempt submitted")

	if s.feedback != nil && isEssayType(exam.Type) {
		s.enqueueFeedback(ctx, exam, userID, req.AnswerText)
	}

	return model.NewAttemptResult(attempt, exam), nil
}

// Score dispatches on the exam type, ignoring case.
func Score(exam *model.Exam, rawAnswerText string) scoring.Result {
	switch strings.ToLower(string(exam.Type)) {
	case string(model.ExamTypeReading):
		return scoring.Evaluate(exam.ItemsOf(model.SkillReading), rawAnswerText)
	case string(model.ExamTypeListening):
		return scoring.Evaluate(exam.ItemsOf(model.SkillListening), rawAnswerText)
	default:
		return scoring.Result{}
	}
}

func isEssayType(t model.ExamType) bool {
	return t.Is(model.ExamTypeWriting) || t.Is(model.ExamTypeSpeaking)
}

// enqueueFeedback turns the essay answer groups of a submission into a
// feedback job. The attempt is already stored, so failures are only logged.
func (s *ExamService) enqueueFeedback(ctx context.Context, exam *model.Exam, userID int, raw string) {
	answers := EssayAnswers(exam, raw)
	if len(answers) == 0 {
		return
	}

	job := &model.FeedbackJob{
		ExamID:     exam.ID,
		UserID:     userID,
		Answers:    answers,
		EnqueuedAt: s.now(),
	}
	if err := s.feedback.Enqueue(ctx, job); err != nil {
		s.log.Error().Err(err).Int("exam_id", exam.ID).Int("user_id", userID).Msg("Failed to enqueue feedback job")
	}
}

// EssayAnswers maps answer groups onto the exam's writing and speaking items.
// Each group's answers are joined into one response; empty responses and
// unknown items are dropped.
func EssayAnswers(exam *model.Exam, raw string) []model.EssayAnswer {
	essay := make(map[int]bool)
	for _, it := range exam.Items {
		if it.Kind == model.SkillWriting || it.Kind == model.SkillSpeaking {
			essay[it.ID] = true
		}
	}

	groups, _ := scoring.DecodeList[scoring.AnswerGroup](raw)
	out := make([]model.EssayAnswer, 0, len(groups))
	seen := make(map[int]bool, len(groups))
	for _, g := range groups {
		if !essay[g.SkillID] || seen[g.SkillID] {
			continue
		}
		text := strings.TrimSpace(strings.Join(g.Answers, "\n\n"))
		if text == "" {
			continue
		}
		seen[g.SkillID] = true
		out = append(out, model.EssayAnswer{SkillID: g.SkillID, Text: text})
	}
	return out
}

// ListAttemptsByUser returns a page of a user's attempts, newest first.
func (s *ExamService) ListAttemptsByUser(ctx context.Context, userID, page, perPage int) ([]model.AttemptResult, *response.Pagination, error) {
	p := response.NewPagination(page, perPage, 0)

	attempts, total, err := s.attempts.ListByUser(ctx, userID, p.PerPage, p.Offset())
	if err != nil {
		return nil, nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, response.NewPagination(p.Page, p.PerPage, total), nil
}

// GetAttempt returns one attempt. Only its owner or an admin may read it.
func (s *ExamService) GetAttempt(ctx context.Context, attemptID int64, requesterID int, isAdmin bool) (*model.AttemptResult, error) {
	res, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if !isAdmin && res.UserID != requesterID {
		return nil, ErrAttemptForbidden
	}
	return res, nil
}

func (s *ExamService) invalidate(ctx context.Context, examID int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, examID); err != nil {
		s.log.Warn().Err(err).Int("exam_id", examID).Msg("Exam cache invalidation failed")
	}
}
