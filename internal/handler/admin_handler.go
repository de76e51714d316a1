package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/ielts-backend/internal/model"
	"github.com/stemsi/ielts-backend/internal/response"
	"github.com/stemsi/ielts-backend/internal/service"
	"github.com/stemsi/ielts-backend/internal/validator"
)

// AdminHandler handles exam authoring endpoints. Every route sits behind
// RequireAdmin.
type AdminHandler struct {
	examService *service.ExamService
	itemService *service.SkillItemService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(examService *service.ExamService, itemService *service.SkillItemService) *AdminHandler {
	return &AdminHandler{
		examService: examService,
		itemService: itemService,
	}
}

// GetExam godoc
// GET /api/v1/admin/exams/:id
// Returns an exam including canonical answers.
func (h *AdminHandler) GetExam(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// CreateExam godoc
// POST /api/v1/admin/exams
func (h *AdminHandler) CreateExam(c *gin.Context) {
	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), &req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// UpdateExam godoc
// PUT /api/v1/admin/exams/:id
// Renames an exam or changes its type.
func (h *AdminHandler) UpdateExam(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Update(c.Request.Context(), id, &req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// DeleteExam godoc
// DELETE /api/v1/admin/exams/:id
// Refused with 409 once learners have submitted attempts.
func (h *AdminHandler) DeleteExam(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), id); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// CreateItem godoc
// POST /api/v1/admin/exams/:id/items
// Adds a skill item. Canonical answers and HTML are compiled from
// questionMarkup unless supplied.
func (h *AdminHandler) CreateItem(c *gin.Context) {
	examID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.CreateSkillItemRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	it, err := h.itemService.Create(c.Request.Context(), examID, &req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"item": it})
}

// UpdateItem godoc
// PUT /api/v1/admin/items/:item_id
func (h *AdminHandler) UpdateItem(c *gin.Context) {
	id, ok := paramID(c, "item_id")
	if !ok {
		return
	}

	var req model.UpdateSkillItemRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	it, err := h.itemService.Update(c.Request.Context(), id, &req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"item": it})
}

// DeleteItem godoc
// DELETE /api/v1/admin/items/:item_id
func (h *AdminHandler) DeleteItem(c *gin.Context) {
	id, ok := paramID(c, "item_id")
	if !ok {
		return
	}

	if err := h.itemService.Delete(c.Request.Context(), id); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
