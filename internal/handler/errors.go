package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/ielts-backend/internal/response"
	"github.com/stemsi/ielts-backend/internal/service"
)

// failWith maps a service error onto the response envelope. Unknown errors
// are attached to the context for the access log and reported as 500.
func failWith(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
	case errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrAttemptNotFound),
		errors.Is(err, service.ErrUserNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrAttemptForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrEmptyAnswer):
		response.Fail(c, http.StatusBadRequest, response.ErrEmptyAnswer)
	case errors.Is(err, service.ErrUnauthenticated):
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
	case errors.Is(err, service.ErrSessionInvalidated):
		response.Fail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
	case errors.Is(err, service.ErrEmailTaken):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	case errors.Is(err, service.ErrExamHasAttempts):
		response.Fail(c, http.StatusConflict, response.ErrDependencyExists)
	case errors.Is(err, service.ErrItemLocked):
		response.Fail(c, http.StatusConflict, response.ErrItemLocked)
	case errors.Is(err, service.ErrEssayItemNotFound):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNotEssayItem)
	case errors.Is(err, service.ErrFeedbackPending):
		response.Fail(c, http.StatusNotFound, response.ErrFeedbackPending)
	case errors.Is(err, service.ErrFeedbackDisabled):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrFeedbackDisabled)
	default:
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// paramID parses a positive integer path parameter, answering 400 when it
// is malformed.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

func pageParams(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "10"))
	return page, perPage
}
