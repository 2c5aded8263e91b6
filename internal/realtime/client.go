package realtime

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

const outboundBuffer = 32

// SSEClient is one open event stream. A storyboard user listens on the
// channel named after their username.
type SSEClient struct {
	ID       uuid.UUID
	Username string
	Channels map[string]bool
	Outbound chan SSEMessage
	Logger   *logger.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func newSSEClient(username string, log *logger.Logger) *SSEClient {
	id := uuid.New()
	return &SSEClient{
		ID:       id,
		Username: username,
		Channels: map[string]bool{},
		Outbound: make(chan SSEMessage, outboundBuffer),
		Logger:   log.With("client_id", id, "username", username),
		done:     make(chan struct{}),
	}
}

// offer queues msg without blocking and reports whether it fit.
func (c *SSEClient) offer(msg SSEMessage) bool {
	select {
	case c.Outbound <- msg:
		return true
	default:
		return false
	}
}

// shut sends no further messages. The hub holds its write lock here so no
// Broadcast can race the close of Outbound.
func (c *SSEClient) shut() {
	c.closeOnce.Do(func() {
		close(c.done)
		close(c.Outbound)
	})
}

func writeEvent(w io.Writer, msg SSEMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, raw)
	return err
}
