package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"basegraph.app/editorial/internal/http/dto"
	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/service"
)

type EventIngestHandler struct {
	service     service.EventIngestService
	traceHeader string
}

func NewEventIngestHandler(service service.EventIngestService, traceHeader string) *EventIngestHandler {
	return &EventIngestHandler{
		service:     service,
		traceHeader: traceHeader,
	}
}

func (h *EventIngestHandler) Ingest(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.IngestEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid ingest request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev := model.Event{
		Type:                 model.EventType(req.EventType),
		ProjectID:            req.ProjectID,
		ThreadID:             req.ThreadID,
		Author:               req.Author,
		Text:                 req.Text,
		FragmentIncorporated: req.FragmentIncorporated,
		WordCount:            req.WordCount,
		ChapterCount:         req.ChapterCount,
		TraceID:              traceID(ctx, c.GetHeader(h.traceHeader)),
	}
	if req.OccurredAt != nil {
		ev.OccurredAt = req.OccurredAt.UTC()
	}

	result, err := h.service.Ingest(ctx, service.EventIngestParams{
		Event:           ev,
		Source:          req.Source,
		ExternalEventID: req.ExternalEventID,
		DedupeKey:       req.DedupeKey,
	})
	if err != nil {
		writeError(c, err, "failed to ingest event")
		return
	}

	c.JSON(http.StatusAccepted, dto.IngestEventResponse{
		EventID:    result.Event.ID,
		DedupeKey:  result.DedupeKey,
		Enqueued:   result.Enqueued,
		Duplicated: result.Duplicated,
	})
}

// traceID prefers the configured trace header and falls back to the active span.
func traceID(ctx context.Context, header string) string {
	if header != "" {
		return header
	}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}
