package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
	"github.com/yungbote/storyboard-backend/internal/http/response"
	"github.com/yungbote/storyboard-backend/internal/services"
)

const maxDiaryImageBytes = 20 << 20

type DiaryStore interface {
	Upload(ctx context.Context, in services.DiaryUpload) (*services.DiaryView, error)
	Get(ctx context.Context, id uuid.UUID) (*services.DiaryView, error)
}

type RenderRequester interface {
	Request(ctx context.Context, diaryID uuid.UUID) (*jobs.JobRun, error)
}

type DiaryHandler struct {
	diaries DiaryStore
	render  RenderRequester
}

func NewDiaryHandler(diaries DiaryStore, render RenderRequester) *DiaryHandler {
	return &DiaryHandler{diaries: diaries, render: render}
}

// POST /api/diaries
func (h *DiaryHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("diary_image")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_diary_image", err)
		return
	}
	if fh.Size > maxDiaryImageBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "diary_image_too_large",
			fmt.Errorf("diary_image is %d bytes, limit %d", fh.Size, maxDiaryImageBytes))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_diary_image", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxDiaryImageBytes))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_diary_image", err)
		return
	}

	view, err := h.diaries.Upload(c.Request.Context(), services.DiaryUpload{
		Username: c.PostForm("username"),
		Filename: fh.Filename,
		Data:     data,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondCreated(c, view)
}

// GET /api/diaries/:id
func (h *DiaryHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_diary_id", err)
		return
	}
	view, err := h.diaries.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, view)
}

// POST /api/diaries/:id/render
func (h *DiaryHandler) Render(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_diary_id", err)
		return
	}
	job, err := h.render.Request(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondJobQueued(c, job)
}
