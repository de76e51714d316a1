package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/ielts-backend/internal/model"
	"github.com/stemsi/ielts-backend/internal/response"
	"github.com/stemsi/ielts-backend/internal/service"
	"github.com/stemsi/ielts-backend/internal/validator"
)

// MarkupHandler previews question markup for authors.
type MarkupHandler struct {
	itemService *service.SkillItemService
}

// NewMarkupHandler creates a new MarkupHandler.
func NewMarkupHandler(itemService *service.SkillItemService) *MarkupHandler {
	return &MarkupHandler{itemService: itemService}
}

// Render godoc
// POST /api/v1/markup/render
// Renders markdown to HTML and lists its canonical answers. Nothing is stored.
func (h *MarkupHandler) Render(c *gin.Context) {
	var req model.RenderMarkupRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.itemService.Preview(req.Markdown, req.Reveal)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}
