package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key holding the JTI of a live login.
func (r *CacheKeyStruct) UserSessionKey(userID int, jti string) string {
	return fmt.Sprintf("user:%d:session:%s", userID, jti)
}

// ExamKey returns the cache key for an exam with all its skill items.
func (r *CacheKeyStruct) ExamKey(examID int) string {
	return fmt.Sprintf("exam:%d:full", examID)
}

// FeedbackChannel returns the Redis PubSub channel announcing new writing
// feedback for one user and exam.
func (r *CacheKeyStruct) FeedbackChannel(examID, userID int) string {
	return fmt.Sprintf("feedback:exam:%d:user:%d", examID, userID)
}

var CacheKey = NewCacheKeyStruct()
