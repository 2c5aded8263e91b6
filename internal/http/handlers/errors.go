package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/storyboard-backend/internal/http/response"
	"github.com/yungbote/storyboard-backend/internal/platform/leonardo"
)

// respondErr maps Leonardo failures to client or gateway errors and leaves
// the rest to apierr.
func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, leonardo.ErrDatasetNotFound):
		response.RespondError(c, http.StatusNotFound, "dataset_not_found", err)
	case errors.Is(err, leonardo.ErrDatasetNotReady):
		response.RespondError(c, http.StatusConflict, "dataset_not_ready", err)
	case errors.Is(err, leonardo.ErrInsufficientImages):
		response.RespondError(c, http.StatusUnprocessableEntity, "insufficient_images", err)
	case errors.Is(err, leonardo.ErrInvalidImageCount):
		response.RespondError(c, http.StatusBadRequest, "invalid_image_count", err)
	case errors.Is(err, leonardo.ErrQuotaExceeded):
		response.RespondError(c, http.StatusTooManyRequests, "quota_exceeded", err)
	default:
		var se *leonardo.ServiceError
		if errors.As(err, &se) {
			response.RespondError(c, http.StatusBadGateway, "upstream_error", err)
			return
		}
		response.RespondErr(c, err)
	}
}
