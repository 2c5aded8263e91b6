package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
	"github.com/yungbote/storyboard-backend/internal/http/response"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	"github.com/yungbote/storyboard-backend/internal/services"
)

// JobHandler exposes the job_run rows behind every queued storyboard step.
type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// GET /api/jobs?username=&limit=
func (h *JobHandler) ListJobs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
		return
	}
	list, err := h.jobs.ListForOwner(dbctx.New(c.Request.Context()), c.Query("username"), limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": list})
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	h.withJob(c, h.jobs.GetByID)
}

// POST /api/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	h.withJob(c, h.jobs.Cancel)
}

func (h *JobHandler) withJob(c *gin.Context, op func(dbctx.Context, uuid.UUID) (*jobs.JobRun, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := op(dbctx.New(c.Request.Context()), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}
