package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	"github.com/yungbote/storyboard-backend/internal/jobs/pipeline/character_generate"
	"github.com/yungbote/storyboard-backend/internal/jobs/pipeline/dataset_assemble"
	"github.com/yungbote/storyboard-backend/internal/jobs/pipeline/model_train_watch"
	"github.com/yungbote/storyboard-backend/internal/jobs/pipeline/scene_render"
	jobruntime "github.com/yungbote/storyboard-backend/internal/jobs/runtime"
	"github.com/yungbote/storyboard-backend/internal/jobs/worker"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/platform/poller"
	"github.com/yungbote/storyboard-backend/internal/realtime"
	"github.com/yungbote/storyboard-backend/internal/services"
	"github.com/yungbote/storyboard-backend/internal/temporalx"
	"github.com/yungbote/storyboard-backend/internal/temporalx/temporalworker"
)

type Services struct {
	Catalog storyboard.Catalog

	// Jobs + notifications
	JobNotifier services.JobNotifier
	JobService  services.JobService
	Progress    *services.ProgressReporter

	Diary     *services.DiaryService
	Character *services.CharacterService
	Datasets  *services.DatasetService
	Assembler *services.DatasetAssembler
	Training  *services.TrainingOrchestrator
	Render    *services.RenderService
	Sheets    *services.SheetComposer

	// Job infra. At most one of JobWorker and TemporalWorker is set.
	JobRegistry    *jobruntime.Registry
	JobWorker      *worker.Worker
	TemporalWorker *temporalworker.Runner
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, sseHub *realtime.SSEHub, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	catalog := storyboard.DefaultCatalog()
	if cfg.CatalogPath != "" {
		c, err := storyboard.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return Services{}, fmt.Errorf("load activity catalog: %w", err)
		}
		catalog = c
	}

	// With a bus every instance's forwarder feeds its own hub, including this one.
	var emitter services.SSEEmitter
	if clients.SSEBus != nil {
		emitter = &services.RedisEmitter{Bus: clients.SSEBus, Log: log}
	} else {
		if !cfg.RunServer {
			log.Warn("Worker without REDIS_ADDR; job events will not reach SSE clients")
		}
		emitter = &services.HubEmitter{Hub: sseHub}
	}

	jobNotifier := services.NewJobNotifier(emitter)
	tcfg := temporalx.LoadConfig()
	jobService := services.NewJobService(db, log, repos.JobRun, jobNotifier, clients.Temporal, tcfg.TaskQueue)

	progressStore := services.NewJobRunProgressStore(repos.JobRun, log)
	progress := services.NewProgressReporter(progressStore, log)

	splitter := services.NewSceneSplitter(clients.OpenAI, log)
	diary := services.NewDiaryService(log, clients.Bucket, clients.Vision, splitter, repos.DiaryEntry, repos.GeneratedImage, cfg.LanguageHints)

	training := services.NewTrainingOrchestrator(log, clients.Leonardo, repos.CustomModel, jobService, services.TrainingConfig{
		WatchInterval: cfg.TrainingWatchInterval,
		WatchMaxPolls: cfg.TrainingWatchMaxPolls,
	})
	assembler := services.NewDatasetAssembler(log, clients.Leonardo, clients.Leonardo, training, services.AssemblyConfig{
		PollInterval: cfg.AssemblyPollInterval,
		PollMaxWait:  cfg.AssemblyPollMaxWait,
	})
	datasets := services.NewDatasetService(jobService, catalog)

	character := services.NewCharacterService(log, clients.Leonardo, clients.Leonardo, repos.GenerationRecord, repos.GeneratedImage, jobService, poller.Policy{
		Interval:    cfg.CharacterPollInterval,
		MaxAttempts: cfg.CharacterMaxPolls,
	})

	sheets, err := services.NewSheetComposer(log, clients.Bucket, nil)
	if err != nil {
		return Services{}, err
	}
	render := services.NewRenderService(log, clients.Leonardo, repos.DiaryEntry, repos.CustomModel, repos.GeneratedImage, sheets, jobService, services.RenderConfig{
		Concurrency: cfg.RenderConcurrency,
		Wait:        poller.Policy{Interval: cfg.RenderPollInterval, MaxWait: cfg.RenderPollMaxWait},
	})

	// Job registry
	jobRegistry := jobruntime.NewRegistry()
	handlers := []jobruntime.Handler{
		character_generate.New(log, character),
		dataset_assemble.New(log, assembler, progressStore, catalog),
		model_train_watch.New(log, training),
		scene_render.New(log, render),
	}
	for _, h := range handlers {
		if err := jobRegistry.Register(h); err != nil {
			return Services{}, err
		}
	}

	out := Services{
		Catalog:     catalog,
		JobNotifier: jobNotifier,
		JobService:  jobService,
		Progress:    progress,
		Diary:       diary,
		Character:   character,
		Datasets:    datasets,
		Assembler:   assembler,
		Training:    training,
		Render:      render,
		Sheets:      sheets,
		JobRegistry: jobRegistry,
	}

	if !cfg.RunWorker {
		return out, nil
	}
	if clients.Temporal != nil {
		r, err := temporalworker.NewRunner(log, clients.Temporal, tcfg, cfg.WorkerConcurrency, temporalworker.Deps{
			DB:       db,
			Jobs:     repos.JobRun,
			Registry: jobRegistry,
			Notify:   jobNotifier,
		})
		if err != nil {
			return Services{}, fmt.Errorf("init temporal worker: %w", err)
		}
		out.TemporalWorker = r
	} else {
		out.JobWorker = worker.NewWorker(db, log, repos.JobRun, jobRegistry, jobNotifier, worker.Config{
			Concurrency:  cfg.WorkerConcurrency,
			PollInterval: cfg.WorkerPollInterval,
			Heartbeat:    cfg.WorkerHeartbeat,
			MaxAttempts:  cfg.JobMaxAttempts,
		})
	}
	return out, nil
}
