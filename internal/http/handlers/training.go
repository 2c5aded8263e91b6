package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	"github.com/yungbote/storyboard-backend/internal/http/response"
	"github.com/yungbote/storyboard-backend/internal/services"
)

type Trainer interface {
	Start(ctx context.Context, in services.TrainingStartInput) (*storyboard.CustomModel, error)
	CurrentModel(ctx context.Context, username string) (*storyboard.CustomModel, error)
}

type TrainingHandler struct {
	training Trainer
}

func NewTrainingHandler(training Trainer) *TrainingHandler {
	return &TrainingHandler{training: training}
}

type startTrainingRequest struct {
	Username    string `json:"username"`
	DatasetID   string `json:"dataset_id"`
	Description string `json:"description"`
}

// POST /api/training
func (h *TrainingHandler) Start(c *gin.Context) {
	var req startTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	model, err := h.training.Start(c.Request.Context(), services.TrainingStartInput{
		Username:    req.Username,
		DatasetID:   req.DatasetID,
		Description: req.Description,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"model": model})
}

// GET /api/models/:username
func (h *TrainingHandler) Current(c *gin.Context) {
	model, err := h.training.CurrentModel(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"model": model})
}
