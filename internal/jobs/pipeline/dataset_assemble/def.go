package dataset_assemble

import (
	"github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/services"
)

type Pipeline struct {
	log       *logger.Logger
	assembler *services.DatasetAssembler
	store     services.ProgressStore
	catalog   storyboard.Catalog
}

func New(baseLog *logger.Logger, assembler *services.DatasetAssembler, store services.ProgressStore, catalog storyboard.Catalog) *Pipeline {
	return &Pipeline{
		log:       baseLog.With("job", services.JobTypeDatasetAssemble),
		assembler: assembler,
		store:     store,
		catalog:   catalog,
	}
}

func (p *Pipeline) Type() string { return services.JobTypeDatasetAssemble }
