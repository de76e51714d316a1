// Package cache holds the Redis-backed exam cache, login sessions and the
// AI feedback queue.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stemsi/ielts-backend/internal/config"
	"github.com/stemsi/ielts-backend/internal/model"
)

// ExamCache stores assembled exams as JSON.
type ExamCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewExamCache creates a new ExamCache. A non-positive ttl keeps entries
// until they are invalidated.
func NewExamCache(rdb *redis.Client, ttl time.Duration) *ExamCache {
	return &ExamCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached exam, or nil on a miss.
func (c *ExamCache) Get(ctx context.Context, examID int) (*model.Exam, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.ExamKey(examID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get exam cache: %w", err)
	}

	var exam model.Exam
	if err := json.Unmarshal(raw, &exam); err != nil {
		// Drop entries written by an incompatible build.
		_ = c.rdb.Del(ctx, config.CacheKey.ExamKey(examID)).Err()
		return nil, nil
	}
	return &exam, nil
}

// Set stores an exam.
func (c *ExamCache) Set(ctx context.Context, exam *model.Exam) error {
	raw, err := json.Marshal(exam)
	if err != nil {
		return fmt.Errorf("marshal exam: %w", err)
	}
	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	return c.rdb.Set(ctx, config.CacheKey.ExamKey(exam.ID), raw, ttl).Err()
}

// Invalidate drops an exam from the cache.
func (c *ExamCache) Invalidate(ctx context.Context, examID int) error {
	return c.rdb.Del(ctx, config.CacheKey.ExamKey(examID)).Err()
}

// SessionStore keeps one key per live login token.
type SessionStore struct {
	rdb *redis.Client
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

// Save registers a token until ttl elapses.
func (s *SessionStore) Save(ctx context.Context, userID int, jti string, ttl time.Duration) error {
	return s.rdb.Set(ctx, config.CacheKey.UserSessionKey(userID, jti), "1", ttl).Err()
}

// Exists reports whether the token is still live.
func (s *SessionStore) Exists(ctx context.Context, userID int, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, config.CacheKey.UserSessionKey(userID, jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete revokes a token.
func (s *SessionStore) Delete(ctx context.Context, userID int, jti string) error {
	return s.rdb.Del(ctx, config.CacheKey.UserSessionKey(userID, jti)).Err()
}

// FeedbackQueue pushes AI grading jobs onto a Redis list.
type FeedbackQueue struct {
	rdb *redis.Client
	key string
}

// NewFeedbackQueue creates a queue on the writing feedback list.
func NewFeedbackQueue(rdb *redis.Client) *FeedbackQueue {
	return &FeedbackQueue{rdb: rdb, key: config.WorkerKey.WritingFeedbackQueue}
}

// Enqueue appends a job.
func (q *FeedbackQueue) Enqueue(ctx context.Context, job *model.FeedbackJob) error {
	raw, err := EncodeJob(job)
	if err != nil {
		return err
	}
	return q.rdb.RPush(ctx, q.key, raw).Err()
}

// EncodeJob serialises a feedback job for the queue.
func EncodeJob(job *model.FeedbackJob) ([]byte, error) {
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal feedback job: %w", err)
	}
	return raw, nil
}

// DecodeJob parses a queued feedback job. Jobs without answers are rejected.
func DecodeJob(raw []byte) (*model.FeedbackJob, error) {
	var job model.FeedbackJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("unmarshal feedback job: %w", err)
	}
	if job.ExamID <= 0 || job.UserID <= 0 || len(job.Answers) == 0 {
		return nil, errors.New("feedback job is incomplete")
	}
	return &job, nil
}
