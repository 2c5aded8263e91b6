package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
	"github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/storyboard-backend/internal/pkg/errors"
)

type DatasetRequest struct {
	Username    string `json:"username"`
	Description string `json:"description"`
	SeedImageID string `json:"seed_image_id"`
	DatasetName string `json:"dataset_name,omitempty"`
	AutoTrain   bool   `json:"auto_train,omitempty"`
}

func (r *DatasetRequest) Normalize() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Description = strings.TrimSpace(r.Description)
	r.SeedImageID = strings.TrimSpace(r.SeedImageID)
	r.DatasetName = strings.TrimSpace(r.DatasetName)
	switch {
	case r.Username == "":
		return fmt.Errorf("%w: username required", pkgerrors.ErrInvalidArgument)
	case r.SeedImageID == "":
		return fmt.Errorf("%w: seed_image_id required", pkgerrors.ErrInvalidArgument)
	case r.Description == "":
		return fmt.Errorf("%w: description required", pkgerrors.ErrInvalidArgument)
	}
	return nil
}

// DatasetService accepts assembly requests. The run itself happens in the
// dataset_assemble job.
type DatasetService struct {
	jobs    JobService
	catalog storyboard.Catalog
}

func NewDatasetService(jobs JobService, catalog storyboard.Catalog) *DatasetService {
	if catalog.Len() == 0 {
		catalog = storyboard.DefaultCatalog()
	}
	return &DatasetService{jobs: jobs, catalog: catalog}
}

// Request enqueues the run with a starting snapshot already in job_run.result,
// so a progress read right after this call finds the job.
func (s *DatasetService) Request(ctx context.Context, req DatasetRequest) (*jobs.JobRun, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	id := uuid.New()
	initial := storyboard.DatasetProgress{
		JobID:           id.String(),
		Found:           true,
		TotalActivities: s.catalog.Len(),
		Logs:            []string{"Queued"},
		Pairs:           []storyboard.ActivityImage{},
		Status:          storyboard.ProgressStarting,
		UpdatedAt:       time.Now().UTC(),
	}
	return s.jobs.Enqueue(dbctx.New(ctx), JobRequest{
		ID:      id,
		Owner:   req.Username,
		JobType: JobTypeDatasetAssemble,
		Payload: map[string]any{
			"username":      req.Username,
			"description":   req.Description,
			"seed_image_id": req.SeedImageID,
			"dataset_name":  req.DatasetName,
			"auto_train":    req.AutoTrain,
		},
		Result: initial,
	})
}

func (s *DatasetService) Catalog() storyboard.Catalog { return s.catalog }
