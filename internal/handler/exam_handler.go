package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/ielts-backend/internal/middleware"
	"github.com/stemsi/ielts-backend/internal/model"
	"github.com/stemsi/ielts-backend/internal/response"
	"github.com/stemsi/ielts-backend/internal/service"
	"github.com/stemsi/ielts-backend/internal/validator"
)

// ExamHandler serves the learner-facing exam endpoints.
type ExamHandler struct {
	examService *service.ExamService
	itemService *service.SkillItemService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, itemService *service.SkillItemService) *ExamHandler {
	return &ExamHandler{
		examService: examService,
		itemService: itemService,
	}
}

// ListExams godoc
// GET /api/v1/exams
// Lists exams with pagination.
func (h *ExamHandler) ListExams(c *gin.Context) {
	page, perPage := pageParams(c)

	exams, pagination, err := h.examService.GetAll(c.Request.Context(), page, perPage)
	if err != nil {
		failWith(c, err)
		return
	}

	public := make([]*model.Exam, 0, len(exams))
	for i := range exams {
		public = append(public, exams[i].Public())
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": public}, pagination)
}

// GetExam godoc
// GET /api/v1/exams/:id
// Returns an exam with all of its skill items. Canonical answers are withheld.
func (h *ExamHandler) GetExam(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam.Public()})
}

// ListItems godoc
// GET /api/v1/exams/:id/items?kind=listening
// Returns the exam's items, optionally of one skill kind.
func (h *ExamHandler) ListItems(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	kind := c.Query("kind")
	if kind != "" && !validator.IsSkill(kind) {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"kind": "kind must be one of reading, listening, writing, speaking",
		})
		return
	}

	items, err := h.itemService.ListByExam(c.Request.Context(), id, kind)
	if err != nil {
		failWith(c, err)
		return
	}

	for i := range items {
		items[i] = items[i].Public()
	}
	response.Success(c, http.StatusOK, gin.H{"items": items})
}

// SubmitAttempt godoc
// POST /api/v1/exams/submit
// Scores the submitted answers and records a new attempt.
func (h *ExamHandler) SubmitAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		if _, empty := fields["answerText"]; empty && len(fields) == 1 {
			response.Fail(c, http.StatusBadRequest, response.ErrEmptyAnswer)
			return
		}
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.examService.SubmitAttempt(c.Request.Context(), &req, claims.UserID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, res)
}

// ListMyAttempts godoc
// GET /api/v1/attempts
// Lists the caller's attempts, newest first.
func (h *ExamHandler) ListMyAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	h.listAttempts(c, claims.UserID)
}

// ListUserAttempts godoc
// GET /api/v1/users/:user_id/attempts
// Lists another user's attempts. Learners may only list their own.
func (h *ExamHandler) ListUserAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	if userID != claims.UserID && !claims.IsAdmin() {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}
	h.listAttempts(c, userID)
}

func (h *ExamHandler) listAttempts(c *gin.Context, userID int) {
	page, perPage := pageParams(c)

	attempts, pagination, err := h.examService.ListAttemptsByUser(c.Request.Context(), userID, page, perPage)
	if err != nil {
		failWith(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts}, pagination)
}

// GetAttempt godoc
// GET /api/v1/attempts/:attempt_id
func (h *ExamHandler) GetAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := strconv.ParseInt(c.Param("attempt_id"), 10, 64)
	if err != nil || attemptID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	res, err := h.examService.GetAttempt(c.Request.Context(), attemptID, claims.UserID, claims.IsAdmin())
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": res})
}
