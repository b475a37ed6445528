package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/service"
	"basegraph.app/editorial/internal/store"
)

// writeError maps domain errors to HTTP statuses. Unmapped errors are logged
// and answered with a generic 500.
func writeError(c *gin.Context, err error, fallback string) {
	var (
		unknown    *model.UnknownPersonaError
		transition *model.InvalidPhaseTransitionError
		stale      *model.StaleKnowledgeAppendError
	)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrVersionConflict), errors.As(err, &stale):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &unknown):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "valid": unknown.Valid})
	case errors.As(err, &transition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		slog.ErrorContext(c.Request.Context(), fallback, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
