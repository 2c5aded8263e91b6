package app

import (
	"strings"
	"time"

	"github.com/yungbote/storyboard-backend/internal/platform/envutil"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

type Config struct {
	Port        string
	ServiceName string
	Environment string
	Version     string

	// RunServer and RunWorker pick the process roles; the CLI sets them.
	RunServer bool
	RunWorker bool

	ShutdownGrace  time.Duration
	MaxUploadBytes int64

	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerHeartbeat    time.Duration
	JobMaxAttempts     int

	CatalogPath   string
	LanguageHints []string

	AssemblyPollInterval time.Duration
	AssemblyPollMaxWait  time.Duration

	CharacterPollInterval time.Duration
	CharacterMaxPolls     int

	RenderConcurrency  int
	RenderPollInterval time.Duration
	RenderPollMaxWait  time.Duration

	TrainingWatchInterval time.Duration
	TrainingWatchMaxPolls int
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		ServiceName: envutil.String("SERVICE_NAME", "storyboard"),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),

		RunServer: envutil.Bool("RUN_SERVER", true),
		RunWorker: envutil.Bool("RUN_WORKER", true),

		ShutdownGrace:  envutil.Seconds("SHUTDOWN_GRACE_SECONDS", 15*time.Second),
		MaxUploadBytes: int64(envutil.Int("MAX_UPLOAD_MB", 20)) << 20,

		WorkerConcurrency:  envutil.Int("WORKER_CONCURRENCY", 4),
		WorkerPollInterval: envutil.Seconds("WORKER_POLL_INTERVAL_SECONDS", time.Second),
		WorkerHeartbeat:    envutil.Seconds("WORKER_HEARTBEAT_SECONDS", 10*time.Second),
		JobMaxAttempts:     envutil.Int("JOB_MAX_ATTEMPTS", 5),

		CatalogPath:   envutil.String("ACTIVITY_CATALOG_PATH", ""),
		LanguageHints: splitList(envutil.String("OCR_LANGUAGE_HINTS", "zh")),

		AssemblyPollInterval: envutil.Seconds("ASSEMBLY_POLL_INTERVAL_SECONDS", 2*time.Second),
		AssemblyPollMaxWait:  envutil.Seconds("ASSEMBLY_POLL_MAX_WAIT_SECONDS", 600*time.Second),

		CharacterPollInterval: envutil.Seconds("CHARACTER_POLL_INTERVAL_SECONDS", 5*time.Second),
		CharacterMaxPolls:     envutil.Int("CHARACTER_MAX_POLLS", 12),

		RenderConcurrency:  envutil.Int("RENDER_CONCURRENCY", 3),
		RenderPollInterval: envutil.Seconds("RENDER_POLL_INTERVAL_SECONDS", 5*time.Second),
		RenderPollMaxWait:  envutil.Seconds("RENDER_POLL_MAX_WAIT_SECONDS", 5*time.Minute),

		TrainingWatchInterval: envutil.Seconds("TRAINING_WATCH_INTERVAL_SECONDS", 30*time.Second),
		TrainingWatchMaxPolls: envutil.Int("TRAINING_WATCH_MAX_POLLS", 60),
	}
	if log != nil {
		log.Info("Config loaded",
			"port", cfg.Port,
			"env", cfg.Environment,
			"worker_concurrency", cfg.WorkerConcurrency,
			"render_concurrency", cfg.RenderConcurrency,
			"catalog_path", cfg.CatalogPath,
		)
	}
	return cfg
}

func splitList(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
