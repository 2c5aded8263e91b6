package handlers

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/storyboard-backend/internal/http/response"
)

type AccountChecker interface {
	Me(ctx context.Context) (json.RawMessage, error)
}

type LeonardoHandler struct {
	account AccountChecker
}

func NewLeonardoHandler(account AccountChecker) *LeonardoHandler {
	return &LeonardoHandler{account: account}
}

// GET /api/leonardo/me
func (h *LeonardoHandler) Me(c *gin.Context) {
	raw, err := h.account.Me(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"user": raw})
}
