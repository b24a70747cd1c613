package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"finbpo/internal/core/apperror"
	"finbpo/internal/core/id"
	"finbpo/internal/infrastructure/idempotency"
	"finbpo/pkg/logger"
)

const contentTypeJSON = "application/json; charset=utf-8"

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers err on the Gin context and aborts the request.
// The JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseID parses a path parameter as an id, reporting a validation error
// when it is malformed.
func (h *BaseHandler) ParseID(c *gin.Context, param string) (id.ID, bool) {
	v, err := id.Parse(c.Param(param))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", param))
		return id.ID{}, false
	}
	return v, true
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// CompleteIdempotency stores the response for replay when the request holds
// an idempotency key. Failures are logged; the response is still sent.
func (h *BaseHandler) CompleteIdempotency(c *gin.Context, statusCode int, contentType string, body []byte) {
	ctx := c.Request.Context()
	claim := idempotency.ClaimFrom(ctx)
	if claim == nil {
		return
	}
	res := idempotency.Replay{StatusCode: statusCode, ContentType: contentType, Body: body}
	if err := claim.Complete(ctx, res); err != nil {
		logger.Warn(ctx, "failed to complete idempotency key", "key", claim.Key, "error", err)
	}
}

// JSON sends data with status and records it for idempotent replay.
func (h *BaseHandler) JSON(c *gin.Context, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	h.CompleteIdempotency(c, status, contentTypeJSON, body)
	c.Data(status, contentTypeJSON, body)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.JSON(c, http.StatusOK, data)
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.JSON(c, http.StatusCreated, data)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	// 204 must replay as 204 with empty body.
	h.CompleteIdempotency(c, http.StatusNoContent, "", nil)
	c.Status(http.StatusNoContent)
}

// File sends a binary attachment. Downloads are never recorded for replay.
func (h *BaseHandler) File(c *gin.Context, contentType, filename string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}
