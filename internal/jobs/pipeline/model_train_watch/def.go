package model_train_watch

import (
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/services"
)

type Pipeline struct {
	log      *logger.Logger
	training *services.TrainingOrchestrator
}

func New(baseLog *logger.Logger, training *services.TrainingOrchestrator) *Pipeline {
	return &Pipeline{
		log:      baseLog.With("job", services.JobTypeModelTrainWatch),
		training: training,
	}
}

func (p *Pipeline) Type() string { return services.JobTypeModelTrainWatch }
