package realtime

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

type SSEEvent string

// Job lifecycle events. Every progress snapshot of a storyboard job arrives
// as a JobProgress event on the owner's channel.
const (
	SSEEventJobCreated  SSEEvent = "JobCreated"
	SSEEventJobProgress SSEEvent = "JobProgress"
	SSEEventJobFailed   SSEEvent = "JobFailed"
	SSEEventJobDone     SSEEvent = "JobDone"
	SSEEventJobCanceled SSEEvent = "JobCanceled"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// SSEHub fans messages out to the clients of this process. Cross-instance
// delivery goes through a bus forwarder that calls Broadcast.
type SSEHub struct {
	log       *logger.Logger
	heartbeat time.Duration

	mu       sync.RWMutex
	channels map[string]map[*SSEClient]struct{}
}

func NewSSEHub(log *logger.Logger) *SSEHub {
	return &SSEHub{
		log:       log.With("component", "SSEHub"),
		heartbeat: 15 * time.Second,
		channels:  map[string]map[*SSEClient]struct{}{},
	}
}

func (hub *SSEHub) NewSSEClient(username string) *SSEClient {
	return newSSEClient(username, hub.log)
}

func (hub *SSEHub) AddChannel(client *SSEClient, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	set := hub.channels[channel]
	if set == nil {
		set = map[*SSEClient]struct{}{}
		hub.channels[channel] = set
	}
	set[client] = struct{}{}
	client.Channels[channel] = true
	client.Logger.Debug("SSE client subscribed", "channel", channel)
}

func (hub *SSEHub) RemoveClient(client *SSEClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.detach(client)
}

func (hub *SSEHub) detach(client *SSEClient) {
	for channel := range client.Channels {
		set := hub.channels[channel]
		delete(set, client)
		if len(set) == 0 {
			delete(hub.channels, channel)
		}
	}
	client.Channels = map[string]bool{}
}

func (hub *SSEHub) Subscribers(channel string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.channels[channel])
}

// Broadcast never blocks. A client whose buffer is full misses the message;
// the next progress snapshot supersedes it.
func (hub *SSEHub) Broadcast(msg SSEMessage) {
	if msg.Channel == "" {
		return
	}
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for client := range hub.channels[msg.Channel] {
		if !client.offer(msg) {
			client.Logger.Warn("Dropping SSE message; outbound buffer full", "event", msg.Event)
		}
	}
}

// ServeHTTP streams client's messages until the request ends or the client is closed.
func (hub *SSEHub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *SSEClient) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	ping := time.NewTicker(hub.heartbeat)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			client.Logger.Debug("SSE stream closed by peer", "error", r.Context().Err())
			return
		case <-client.done:
			return
		case <-ping.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
		case msg, open := <-client.Outbound:
			if !open {
				return
			}
			if err := writeEvent(w, msg); err != nil {
				client.Logger.Warn("Failed to write SSE message", "event", msg.Event, "error", err)
				continue
			}
		}
		flusher.Flush()
	}
}

func (hub *SSEHub) CloseClient(client *SSEClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.detach(client)
	client.shut()
}
