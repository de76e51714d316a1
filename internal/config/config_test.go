package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty allows all", "", nil},
		{"single", "http://localhost:5173", []string{"http://localhost:5173"}},
		{"trims and drops blanks", " https://a.test , ,https://b.test ", []string{"https://a.test", "https://b.test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseOrigins(tt.raw))
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("EXAM_CACHE_TTL_SECONDS", "30")
	t.Setenv("FEEDBACK_MAX_RETRIES", "not-a-number")
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg := Load()
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 30*time.Second, cfg.ExamCacheTTL)
	assert.Equal(t, 3, cfg.FeedbackMaxRetries)
	assert.True(t, cfg.LLMEnabled())
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "exam:7:full", CacheKey.ExamKey(7))
	assert.Equal(t, "user:3:session:abc", CacheKey.UserSessionKey(3, "abc"))
	assert.Equal(t, "feedback:exam:7:user:3", CacheKey.FeedbackChannel(7, 3))
}
