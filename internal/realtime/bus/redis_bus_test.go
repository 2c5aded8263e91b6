package bus

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/realtime"
)

func TestDecodeMessage(t *testing.T) {
	msg, err := decodeMessage(`{"channel":"dave","event":"JobProgress","data":{"progress":40}}`)
	if err != nil {
		t.Fatalf("decodeMessage: %v", err)
	}
	if msg.Channel != "dave" || msg.Event != realtime.SSEEventJobProgress {
		t.Fatalf("msg = %+v", msg)
	}
	for _, bad := range []string{`not json`, `{"event":"JobDone"}`, `{"channel":"dave"}`} {
		if _, err := decodeMessage(bad); err == nil {
			t.Fatalf("decodeMessage(%q): expected error", bad)
		}
	}
}

func TestRedisConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	cfg := RedisConfigFromEnv()
	if cfg.Addr != "redis:6379" || cfg.DB != 2 || cfg.Channel != "storyboard:sse" || cfg.Timeout != 5*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestNewRedisBusRequiresAddr(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if _, err := NewRedisBus(log, RedisConfig{}); err == nil {
		t.Fatalf("expected error without address")
	}
	var b *redisBus
	if err := b.Publish(context.Background(), realtime.SSEMessage{}); err != errNotInitialized {
		t.Fatalf("Publish on nil bus = %v", err)
	}
}
