package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/editorial/internal/service"
	"basegraph.app/editorial/internal/tracker"
)

type GitLabWebhookHandler struct {
	parser      *tracker.WebhookParser
	eventIngest service.EventIngestService
	traceHeader string
}

func NewGitLabWebhookHandler(parser *tracker.WebhookParser, eventIngest service.EventIngestService, traceHeader string) *GitLabWebhookHandler {
	return &GitLabWebhookHandler{
		parser:      parser,
		eventIngest: eventIngest,
		traceHeader: traceHeader,
	}
}

func (h *GitLabWebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.parser.VerifyToken(c.GetHeader("X-Gitlab-Token")); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	ev, err := h.parser.Parse(c.GetHeader("X-Gitlab-Event"), body)
	if errors.Is(err, tracker.ErrIgnored) {
		slog.DebugContext(ctx, "gitlab webhook ignored", "reason", err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if err != nil {
		slog.WarnContext(ctx, "invalid gitlab webhook", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	ev.TraceID = traceID(ctx, c.GetHeader(h.traceHeader))

	params := service.EventIngestParams{Event: ev, Source: "gitlab"}
	if uuid := c.GetHeader("X-Gitlab-Event-UUID"); uuid != "" {
		params.ExternalEventID = &uuid
	}

	result, err := h.eventIngest.Ingest(ctx, params)
	if err != nil {
		writeError(c, err, "failed to process event")
		return
	}

	slog.InfoContext(ctx, "gitlab webhook processed",
		"event_type", ev.Type,
		"project_id", ev.ProjectID,
		"thread_id", ev.ThreadID,
		"event_id", result.Event.ID,
		"enqueued", result.Enqueued,
		"duplicated", result.Duplicated)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
