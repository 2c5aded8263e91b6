package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
	"github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	"github.com/yungbote/storyboard-backend/internal/http/response"
	"github.com/yungbote/storyboard-backend/internal/services"
)

type CharacterGenerator interface {
	Request(ctx context.Context, req services.CharacterRequest) (*jobs.JobRun, error)
	GenerationStatus(ctx context.Context, generationID string) (*storyboard.GenerationRecord, error)
}

type CharacterHandler struct {
	characters CharacterGenerator
}

func NewCharacterHandler(characters CharacterGenerator) *CharacterHandler {
	return &CharacterHandler{characters: characters}
}

// POST /api/characters
func (h *CharacterHandler) Create(c *gin.Context) {
	var req services.CharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	job, err := h.characters.Request(c.Request.Context(), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondJobQueued(c, job)
}

// GET /api/generations/:id
func (h *CharacterHandler) Generation(c *gin.Context) {
	rec, err := h.characters.GenerationStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"generation": rec})
}
