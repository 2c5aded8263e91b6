package scene_render

import (
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/services"
)

type Pipeline struct {
	log    *logger.Logger
	render *services.RenderService
}

func New(baseLog *logger.Logger, render *services.RenderService) *Pipeline {
	return &Pipeline{
		log:    baseLog.With("job", services.JobTypeSceneRender),
		render: render,
	}
}

func (p *Pipeline) Type() string { return services.JobTypeSceneRender }
