package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/storyboard-backend/internal/http/handlers"
	httpMW "github.com/yungbote/storyboard-backend/internal/http/middleware"
	"github.com/yungbote/storyboard-backend/internal/observability"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	// MaxMultipartMemory caps the in-memory part of a multipart upload.
	MaxMultipartMemory int64

	HealthHandler    *httpH.HealthHandler
	LeonardoHandler  *httpH.LeonardoHandler
	DiaryHandler     *httpH.DiaryHandler
	CharacterHandler *httpH.CharacterHandler
	DatasetHandler   *httpH.DatasetHandler
	TrainingHandler  *httpH.TrainingHandler
	JobHandler       *httpH.JobHandler
	RealtimeHandler  *httpH.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = cfg.MaxMultipartMemory
	}
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		if cfg.LeonardoHandler != nil {
			api.GET("/leonardo/me", cfg.LeonardoHandler.Me)
		}

		// Diaries
		if cfg.DiaryHandler != nil {
			api.POST("/diaries", cfg.DiaryHandler.Upload)
			api.GET("/diaries/:id", cfg.DiaryHandler.Get)
			api.POST("/diaries/:id/render", cfg.DiaryHandler.Render)
		}

		// Characters
		if cfg.CharacterHandler != nil {
			api.POST("/characters", cfg.CharacterHandler.Create)
			api.GET("/generations/:id", cfg.CharacterHandler.Generation)
		}

		// Datasets
		if cfg.DatasetHandler != nil {
			api.POST("/datasets", cfg.DatasetHandler.Create)
			api.GET("/progress/:job_id", cfg.DatasetHandler.Progress)
		}

		// Training
		if cfg.TrainingHandler != nil {
			api.POST("/training", cfg.TrainingHandler.Start)
			api.GET("/models/:username", cfg.TrainingHandler.Current)
		}

		// Jobs
		if cfg.JobHandler != nil {
			api.GET("/jobs", cfg.JobHandler.ListJobs)
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
			api.POST("/jobs/:id/cancel", cfg.JobHandler.CancelJob)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			api.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}
	}

	return r
}
