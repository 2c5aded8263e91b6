package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/storyboard-backend/internal/http/response"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// GET /api/sse/stream?username=
//
// Every stream for a username joins that username's channel, which is where
// job events for the user's jobs are published.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_username", errors.New("username query parameter required"))
		return
	}
	client := h.hub.NewSSEClient(username)
	h.hub.AddChannel(client, username)
	h.log.Debug("SSE stream open", "client_id", client.ID, "username", username)

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.hub.CloseClient(client)
	h.log.Debug("SSE stream closed", "client_id", client.ID, "username", username)
}
