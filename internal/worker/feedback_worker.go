package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-backend/internal/cache"
	"github.com/stemsi/ielts-backend/internal/config"
	"github.com/stemsi/ielts-backend/internal/llm"
	"github.com/stemsi/ielts-backend/internal/metrics"
	"github.com/stemsi/ielts-backend/internal/model"
	ws "github.com/stemsi/ielts-backend/internal/websocket"
)

const (
	FeedbackPollTimeout = 1 * time.Second
	// RequeueBackoff is the wait before the first retry of a failed answer.
	// It doubles per retry up to MaxRequeueBackoff.
	RequeueBackoff    = 2 * time.Second
	MaxRequeueBackoff = 30 * time.Second
)

// Assessor grades one essay response.
type Assessor interface {
	Assess(ctx context.Context, task llm.EssayTask) (*llm.Assessment, error)
}

// ItemLoader resolves the skill item an answer targets.
type ItemLoader interface {
	GetByID(ctx context.Context, id int) (*model.SkillItem, error)
}

// FeedbackSaver stores one assessment.
type FeedbackSaver interface {
	Upsert(ctx context.Context, f *model.WritingFeedback) error
}

// Broker moves jobs between queues and announces results.
type Broker interface {
	Push(ctx context.Context, queue string, payload []byte) error
	Publish(ctx context.Context, channel string, payload []byte) error
}

type redisBroker struct {
	rdb *redis.Client
}

func (b redisBroker) Push(ctx context.Context, queue string, payload []byte) error {
	return b.rdb.RPush(ctx, queue, payload).Err()
}

func (b redisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.rdb.Publish(ctx, channel, payload).Err()
}

// FeedbackWorker consumes writing_feedback_queue, grades each answer with the
// LLM and stores the result. Answers that fail are requeued until they run
// out of retries, then parked on the dead queue.
type FeedbackWorker struct {
	rdb        *redis.Client
	broker     Broker
	items      ItemLoader
	store      FeedbackSaver
	assessor   Assessor
	maxRetries int
	timeout    time.Duration
	backoff    time.Duration
	log        zerolog.Logger
}

// NewFeedbackWorker creates a new FeedbackWorker.
func NewFeedbackWorker(rdb *redis.Client, items ItemLoader, store FeedbackSaver, assessor Assessor, maxRetries int, timeout time.Duration, log zerolog.Logger) *FeedbackWorker {
	return &FeedbackWorker{
		rdb:        rdb,
		broker:     redisBroker{rdb: rdb},
		items:      items,
		store:      store,
		assessor:   assessor,
		maxRetries: maxRetries,
		timeout:    timeout,
		backoff:    RequeueBackoff,
		log:        log.With().Str("component", "feedback_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *FeedbackWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *FeedbackWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, FeedbackPollTimeout, config.WorkerKey.WritingFeedbackQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			// Back off so a lost connection does not spin.
			time.Sleep(FeedbackPollTimeout)
		}
		return
	}

	if len(result) < 2 {
		return
	}

	job, err := cache.DecodeJob([]byte(result[1]))
	if err != nil {
		w.log.Error().Err(err).Msg("Dropping invalid feedback job")
		return
	}

	w.Handle(ctx, job)
}

// Handle grades every answer of a job and reroutes the failures.
func (w *FeedbackWorker) Handle(ctx context.Context, job *model.FeedbackJob) {
	jobLog := w.log.With().Int("exam_id", job.ExamID).Int("user_id", job.UserID).Int("retries", job.Retries).Logger()

	var failed []model.EssayAnswer
	for _, ans := range job.Answers {
		fb, err := w.grade(ctx, job, ans)
		if err != nil {
			if errors.Is(err, errSkipAnswer) {
				jobLog.Warn().Err(err).Int("skill_id", ans.SkillID).Msg("Skipping answer")
				continue
			}
			jobLog.Error().Err(err).Int("skill_id", ans.SkillID).Msg("Grading failed")
			failed = append(failed, ans)
			continue
		}

		metrics.ObserveFeedbackJob("stored")
		w.notify(ctx, job, ws.FeedbackEvent{
			Event:   ws.EventFeedbackReady,
			ExamID:  job.ExamID,
			SkillID: fb.SkillID,
			Overall: fb.Overall,
		})
	}

	if len(failed) == 0 {
		return
	}

	next := *job
	next.Answers = failed
	next.Retries = job.Retries + 1

	queue := config.WorkerKey.WritingFeedbackQueue
	outcome := "requeued"
	event := ws.EventFeedbackPending
	if next.Retries > w.maxRetries {
		queue = config.WorkerKey.WritingFeedbackDeadQueue
		outcome = "dead"
		event = ws.EventFeedbackFailed
	}

	if outcome == "requeued" {
		w.waitBeforeRequeue(ctx, next.Retries)
	}

	raw, err := cache.EncodeJob(&next)
	if err == nil {
		err = w.broker.Push(context.WithoutCancel(ctx), queue, raw)
	}
	if err != nil {
		jobLog.Error().Err(err).Str("queue", queue).Msg("Failed to reroute feedback job")
		return
	}

	metrics.ObserveFeedbackJob(outcome)
	jobLog.Warn().Str("queue", queue).Int("failed", len(failed)).Msg("Feedback job rerouted")
	for _, ans := range failed {
		w.notify(ctx, job, ws.FeedbackEvent{Event: event, ExamID: job.ExamID, SkillID: ans.SkillID})
	}
}

// waitBeforeRequeue sleeps backoff*2^(retries-1), capped at MaxRequeueBackoff.
// A cancelled ctx ends the wait early so the job is still pushed back.
func (w *FeedbackWorker) waitBeforeRequeue(ctx context.Context, retries int) {
	if w.backoff <= 0 {
		return
	}
	wait := w.backoff
	for i := 1; i < retries && wait < MaxRequeueBackoff; i++ {
		wait *= 2
	}
	if wait > MaxRequeueBackoff {
		wait = MaxRequeueBackoff
	}

	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

var errSkipAnswer = errors.New("answer does not target a writing or speaking item")

func (w *FeedbackWorker) grade(ctx context.Context, job *model.FeedbackJob, ans model.EssayAnswer) (*model.WritingFeedback, error) {
	item, err := w.items.GetByID(ctx, ans.SkillID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errSkipAnswer
		}
		return nil, fmt.Errorf("load skill item: %w", err)
	}
	if item.ExamID != job.ExamID || (item.Kind != model.SkillWriting && item.Kind != model.SkillSpeaking) {
		return nil, errSkipAnswer
	}

	actx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	a, err := w.assessor.Assess(actx, llm.EssayTask{
		SkillID:  item.ID,
		Kind:     string(item.Kind),
		Prompt:   item.Content,
		Response: ans.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("assess: %w", err)
	}

	fb, err := NewWritingFeedback(job, ans, a)
	if err != nil {
		return nil, err
	}
	if err := w.store.Upsert(ctx, fb); err != nil {
		return nil, fmt.Errorf("store feedback: %w", err)
	}
	return fb, nil
}

func (w *FeedbackWorker) notify(ctx context.Context, job *model.FeedbackJob, ev ws.FeedbackEvent) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	channel := config.CacheKey.FeedbackChannel(job.ExamID, job.UserID)
	if err := w.broker.Publish(context.WithoutCancel(ctx), channel, raw); err != nil {
		w.log.Warn().Err(err).Str("channel", channel).Msg("Publish failed")
	}
}

// NewWritingFeedback converts an assessment into its stored form.
func NewWritingFeedback(job *model.FeedbackJob, ans model.EssayAnswer, a *llm.Assessment) (*model.WritingFeedback, error) {
	grammar, err := json.Marshal(a.GrammarVocab)
	if err != nil {
		return nil, fmt.Errorf("marshal grammar review: %w", err)
	}
	sections, err := json.Marshal(a.Sections)
	if err != nil {
		return nil, fmt.Errorf("marshal feedback sections: %w", err)
	}

	return &model.WritingFeedback{
		ExamID:            job.ExamID,
		UserID:            job.UserID,
		SkillID:           ans.SkillID,
		AnswerText:        ans.Text,
		Overall:           a.Overall,
		TaskAchievement:   a.TaskAchievement,
		CoherenceCohesion: a.CoherenceCohesion,
		LexicalResource:   a.LexicalResource,
		GrammarAccuracy:   a.GrammarAccuracy,
		GrammarVocabJSON:  grammar,
		FeedbackSections:  sections,
	}, nil
}
