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

type DatasetRequester interface {
	Request(ctx context.Context, req services.DatasetRequest) (*jobs.JobRun, error)
}

type ProgressReader interface {
	Read(ctx context.Context, jobID string) storyboard.DatasetProgress
}

type DatasetHandler struct {
	datasets DatasetRequester
	progress ProgressReader
}

func NewDatasetHandler(datasets DatasetRequester, progress ProgressReader) *DatasetHandler {
	return &DatasetHandler{datasets: datasets, progress: progress}
}

// POST /api/datasets
func (h *DatasetHandler) Create(c *gin.Context) {
	var req services.DatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	job, err := h.datasets.Request(c.Request.Context(), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondJobQueued(c, job)
}

// GET /api/progress/:job_id
//
// Always 200. An unknown id reads as found=false with status not_found.
func (h *DatasetHandler) Progress(c *gin.Context) {
	response.RespondOK(c, h.progress.Read(c.Request.Context(), c.Param("job_id")))
}
