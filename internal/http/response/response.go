// Package response writes the JSON bodies every handler answers with.
// Failures use one envelope: {"error":{"message":"...","code":"..."}}.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
	"github.com/yungbote/storyboard-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError aborts the chain. err is also recorded on the gin context for
// the request logger.
func RespondError(c *gin.Context, status int, code string, err error) {
	body := APIError{Message: "unknown error", Code: code}
	if err != nil {
		body.Message = err.Error()
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: body})
}

// RespondErr derives status and code with apierr.From.
func RespondErr(c *gin.Context, err error) {
	ae := apierr.From(err)
	RespondError(c, ae.Status, ae.Code, err)
}

func RespondOK(c *gin.Context, payload any)      { c.JSON(http.StatusOK, payload) }
func RespondCreated(c *gin.Context, payload any) { c.JSON(http.StatusCreated, payload) }

// RespondJobQueued answers 202 with the queued job_run row. Clients follow it
// through /api/jobs/:id, /api/progress/:job_id or the SSE stream.
func RespondJobQueued(c *gin.Context, job *jobs.JobRun) {
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "job": job})
}
