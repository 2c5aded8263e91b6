package app

import (
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/storyboard-backend/internal/platform/gcp"
	"github.com/yungbote/storyboard-backend/internal/platform/leonardo"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/platform/openai"
	"github.com/yungbote/storyboard-backend/internal/realtime/bus"
	"github.com/yungbote/storyboard-backend/internal/temporalx"
)

type Clients struct {
	Leonardo *leonardo.Client
	OpenAI   openai.Client
	Bucket   gcp.BucketService
	Vision   gcp.Vision
	// SSEBus is nil without REDIS_ADDR; events then stay in this process.
	SSEBus bus.Bus
	// Temporal is nil without TEMPORAL_ADDRESS.
	Temporal temporalsdkclient.Client
}

func wireClients(log *logger.Logger) (c Clients, err error) {
	log.Info("Wiring clients...")
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if c.Leonardo, err = leonardo.New(log, leonardo.ConfigFromEnv()); err != nil {
		return c, fmt.Errorf("init leonardo client: %w", err)
	}
	if c.OpenAI, err = openai.NewClient(log); err != nil {
		return c, fmt.Errorf("init openai client: %w", err)
	}
	if c.Bucket, err = gcp.NewBucketService(log); err != nil {
		return c, fmt.Errorf("init bucket client: %w", err)
	}
	if c.Vision, err = gcp.NewVision(log); err != nil {
		return c, fmt.Errorf("init vision client: %w", err)
	}
	if rcfg := bus.RedisConfigFromEnv(); rcfg.Addr != "" {
		if c.SSEBus, err = bus.NewRedisBus(log, rcfg); err != nil {
			return c, fmt.Errorf("init redis SSE bus: %w", err)
		}
	}
	if c.Temporal, err = temporalx.NewClient(log); err != nil {
		return c, fmt.Errorf("init temporal client: %w", err)
	}
	return c, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.SSEBus != nil {
		_ = c.SSEBus.Close()
	}
	if c.Vision != nil {
		_ = c.Vision.Close()
	}
	if c.Bucket != nil {
		_ = c.Bucket.Close()
	}
}
