package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/ielts-backend/internal/config"
	"github.com/stemsi/ielts-backend/internal/database"
	"github.com/stemsi/ielts-backend/internal/response"
)

// HealthChecker reports backing-store reachability.
type HealthChecker interface {
	Check(ctx context.Context) database.Status
}

// SystemHandler serves health and runtime status.
type SystemHandler struct {
	checker   HealthChecker
	rdb       *redis.Client
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. rdb may be nil, in which
// case queue depths are reported as zero.
func NewSystemHandler(checker HealthChecker, rdb *redis.Client) *SystemHandler {
	return &SystemHandler{
		checker:   checker,
		rdb:       rdb,
		startTime: time.Now(),
	}
}

// Health godoc
// GET /health
// Answers 503 when PostgreSQL or Redis is unreachable.
func (h *SystemHandler) Health(c *gin.Context) {
	st := h.checker.Check(c.Request.Context())

	status, code := "ok", http.StatusOK
	if !st.Healthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	response.Success(c, code, gin.H{
		"status":   status,
		"postgres": st.Postgres,
		"redis":    st.Redis,
	})
}

type systemStatus struct {
	Uptime     string `json:"uptime"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	NumGC      uint32 `json:"num_gc"`

	QueueFeedback     int64 `json:"queue_feedback"`
	QueueFeedbackDead int64 `json:"queue_feedback_dead"`
}

// Status godoc
// GET /api/v1/admin/system/status
// Reports Go runtime figures and the depth of the feedback queues.
func (h *SystemHandler) Status(c *gin.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	st := systemStatus{
		Uptime:     formatDuration(time.Since(h.startTime)),
		GoVersion:  runtime.Version(),
		NumCPU:     runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		NumGC:      ms.NumGC,
	}

	if h.rdb != nil {
		ctx := c.Request.Context()
		pipe := h.rdb.Pipeline()
		pending := pipe.LLen(ctx, config.WorkerKey.WritingFeedbackQueue)
		dead := pipe.LLen(ctx, config.WorkerKey.WritingFeedbackDeadQueue)
		if _, err := pipe.Exec(ctx); err == nil {
			st.QueueFeedback, _ = pending.Result()
			st.QueueFeedbackDead, _ = dead.Result()
		}
	}

	response.Success(c, http.StatusOK, st)
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
