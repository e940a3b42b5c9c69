package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hivedesk/onboarding/backend/model"
	"github.com/hivedesk/onboarding/backend/service"
	"github.com/hivedesk/onboarding/pkg/logger"
)

// envelope is the body of every JSON response
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, envelope{Success: false, Error: msg})
}

// failWith maps service errors to status codes
func failWith(c *gin.Context, err error) {
	var (
		uploadErr   *model.UploadError
		analysisErr *service.AnalysisFailedError
	)
	switch {
	case errors.As(err, &uploadErr):
		fail(c, http.StatusBadRequest, uploadErr.Reason)
	case errors.Is(err, service.ErrDocumentNotFound):
		fail(c, http.StatusNotFound, "Document not found")
	case errors.Is(err, service.ErrAnalysisNotFound):
		fail(c, http.StatusNotFound, "Document has not been analyzed")
	case errors.Is(err, service.ErrObjectNotFound):
		fail(c, http.StatusNotFound, "Document file is missing")
	case errors.Is(err, service.ErrInvalidReview):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &analysisErr):
		logger.Warn(c.Request.Context(), "analysis failed", "document_id", analysisErr.DocumentID, "error", analysisErr.Err)
		fail(c, http.StatusBadGateway, "AI analysis failed, the document is queued for manual review")
	default:
		logger.Error(c.Request.Context(), "request failed", "error", err)
		fail(c, http.StatusInternalServerError, "Internal server error")
	}
}
