package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/ielts-backend/internal/middleware"
	"github.com/stemsi/ielts-backend/internal/model"
	"github.com/stemsi/ielts-backend/internal/response"
	"github.com/stemsi/ielts-backend/internal/service"
	"github.com/stemsi/ielts-backend/internal/validator"
)

// WritingHandler exposes AI feedback for writing and speaking responses.
type WritingHandler struct {
	feedbackService *service.FeedbackService
}

// NewWritingHandler creates a new WritingHandler.
func NewWritingHandler(feedbackService *service.FeedbackService) *WritingHandler {
	return &WritingHandler{feedbackService: feedbackService}
}

// Grade godoc
// POST /api/v1/writing/grade
// Queues essay responses for AI grading. The result is fetched later from
// the feedback endpoint or streamed over the feedback socket.
func (h *WritingHandler) Grade(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.GradeWritingRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.feedbackService.RequestGrading(c.Request.Context(), &req, claims.UserID); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{
		"examId": req.ExamID,
		"status": "queued",
	})
}

// Feedback godoc
// GET /api/v1/writing/feedback/:exam_id
// Returns the caller's stored feedback, or 404 FEEDBACK_PENDING while the
// worker has not produced any.
func (h *WritingHandler) Feedback(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	report, err := h.feedbackService.Report(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, report)
}
