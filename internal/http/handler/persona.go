package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/editorial/internal/http/dto"
	"basegraph.app/editorial/internal/service"
)

type PersonaHandler struct {
	service        service.EditorialService
	defaultPersona string
}

func NewPersonaHandler(service service.EditorialService, defaultPersona string) *PersonaHandler {
	return &PersonaHandler{service: service, defaultPersona: defaultPersona}
}

func (h *PersonaHandler) List(c *gin.Context) {
	profiles := h.service.Personas()
	out := make([]dto.PersonaSummary, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, dto.PersonaSummary{ID: p.ID, Name: p.Name, Tagline: p.Tagline})
	}
	c.JSON(http.StatusOK, dto.PersonaListResponse{Personas: out, Default: h.defaultPersona})
}

func (h *PersonaHandler) Get(c *gin.Context) {
	profile, err := h.service.Persona(c.Param("id"))
	if err != nil {
		// An unknown id on this route is a missing resource.
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, profile)
}
