package websocket

import "github.com/stemsi/ielts-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError           Event = "error"
	EventPong            Event = "pong"
	EventFeedbackPending Event = "feedback_pending"
	EventFeedbackReady   Event = "feedback_ready"
	EventFeedbackFailed  Event = "feedback_failed"
)

// FeedbackEvent announces progress of AI grading for one skill item. The
// worker publishes it on the user's feedback channel; the socket handler
// attaches the refreshed report before relaying ready events.
type FeedbackEvent struct {
	Event   Event                 `json:"event"`
	ExamID  int                   `json:"examId"`
	SkillID int                   `json:"skillId,omitempty"`
	Overall float64               `json:"overall,omitempty"`
	Error   string                `json:"error,omitempty"`
	Report  *model.FeedbackReport `json:"report,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
