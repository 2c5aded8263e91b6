package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/storyboard-backend/internal/http"
	httpH "github.com/yungbote/storyboard-backend/internal/http/handlers"
	"github.com/yungbote/storyboard-backend/internal/observability"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/realtime"
)

type Handlers struct {
	Health    *httpH.HealthHandler
	Leonardo  *httpH.LeonardoHandler
	Diary     *httpH.DiaryHandler
	Character *httpH.CharacterHandler
	Dataset   *httpH.DatasetHandler
	Training  *httpH.TrainingHandler
	Job       *httpH.JobHandler
	Realtime  *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services, clients Clients, sseHub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:    httpH.NewHealthHandler(db),
		Leonardo:  httpH.NewLeonardoHandler(clients.Leonardo),
		Diary:     httpH.NewDiaryHandler(services.Diary, services.Render),
		Character: httpH.NewCharacterHandler(services.Character),
		Dataset:   httpH.NewDatasetHandler(services.Datasets, services.Progress),
		Training:  httpH.NewTrainingHandler(services.Training),
		Job:       httpH.NewJobHandler(services.JobService),
		Realtime:  httpH.NewRealtimeHandler(log, sseHub),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers) *gin.Engine {
	serviceName := ""
	if observability.TracingEnabled() {
		serviceName = cfg.ServiceName
	}
	return http.NewRouter(http.RouterConfig{
		Log:                log,
		Metrics:            metrics,
		ServiceName:        serviceName,
		MaxMultipartMemory: cfg.MaxUploadBytes,
		HealthHandler:      handlers.Health,
		LeonardoHandler:    handlers.Leonardo,
		DiaryHandler:       handlers.Diary,
		CharacterHandler:   handlers.Character,
		DatasetHandler:     handlers.Dataset,
		TrainingHandler:    handlers.Training,
		JobHandler:         handlers.Job,
		RealtimeHandler:    handlers.Realtime,
	})
}
