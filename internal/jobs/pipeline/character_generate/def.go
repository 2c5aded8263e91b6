package character_generate

import (
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/services"
)

type Pipeline struct {
	log        *logger.Logger
	characters *services.CharacterService
}

func New(baseLog *logger.Logger, characters *services.CharacterService) *Pipeline {
	return &Pipeline{
		log:        baseLog.With("job", services.JobTypeCharacterGenerate),
		characters: characters,
	}
}

func (p *Pipeline) Type() string { return services.JobTypeCharacterGenerate }
