package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"basegraph.app/editorial/internal/http/dto"
	"basegraph.app/editorial/internal/service"
)

const maxPreferenceBytes = 64 << 10

type EditorialHandler struct {
	service service.EditorialService
}

func NewEditorialHandler(service service.EditorialService) *EditorialHandler {
	return &EditorialHandler{service: service}
}

func (h *EditorialHandler) ProjectPhase(c *gin.Context) {
	status, err := h.service.ProjectStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to load project phase")
		return
	}

	p := status.Project
	resp := dto.ProjectPhaseResponse{
		ProjectID: p.ProjectID,
		Phase:     p.Phase,
		Label:     p.Phase.Label(),
		Pinned:    p.Pinned,
		EnteredAt: p.EnteredAt,
		Evidence:  p.Evidence,
		Version:   p.Version,
		Threads:   make([]dto.ThreadPhaseResponse, 0, len(status.Threads)),
	}
	for _, t := range status.Threads {
		resp.Threads = append(resp.Threads, dto.NewThreadPhaseResponse(t))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *EditorialHandler) ThreadPhase(c *gin.Context) {
	thread, err := h.service.ThreadPhase(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to load thread phase")
		return
	}
	c.JSON(http.StatusOK, dto.NewThreadPhaseResponse(*thread))
}

func (h *EditorialHandler) Knowledge(c *gin.Context) {
	view, err := h.service.Knowledge(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to load knowledge")
		return
	}
	snap := view.Snapshot
	c.Header("ETag", strconv.Quote(snap.Version()))
	c.JSON(http.StatusOK, dto.KnowledgeResponse{
		ProjectID:    snap.ProjectID,
		Version:      snap.Version(),
		FactsVersion: snap.FactsVersion,
		Facts:        snap.Facts,
		Preferences:  snap.Preferences,
		Rendered:     view.Rendered,
	})
}

// ReplacePreferences takes a YAML or JSON document. If-Match carries the
// version being replaced; a missing header creates the first version.
func (h *EditorialHandler) ReplacePreferences(c *gin.Context) {
	expected, err := parseIfMatch(c.GetHeader("If-Match"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPreferenceBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(body) > maxPreferenceBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "preference document too large"})
		return
	}

	saved, err := h.service.ReplacePreferences(c.Request.Context(), c.Param("id"), body, expected)
	if err != nil {
		writeError(c, err, "failed to replace preferences")
		return
	}

	c.Header("ETag", strconv.Quote(strconv.FormatInt(saved.Version, 10)))
	c.JSON(http.StatusOK, saved)
}

func parseIfMatch(header string) (int64, error) {
	header = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), "W/"))
	if header == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(strings.Trim(header, `"`), 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("If-Match must be a preference version, got %q", header)
	}
	return v, nil
}
