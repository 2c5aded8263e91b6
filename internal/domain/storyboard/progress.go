package storyboard

import "time"

type ProgressStatus string

const (
	ProgressStarting   ProgressStatus = "starting"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressComplete   ProgressStatus = "complete"
	// ProgressError means the most recent activity failed. The run continues.
	ProgressError  ProgressStatus = "error"
	ProgressFailed ProgressStatus = "failed"
	// ProgressNotFound is only ever produced by reads for an unknown job id.
	ProgressNotFound ProgressStatus = "not_found"
)

func (s ProgressStatus) Terminal() bool {
	return s == ProgressComplete || s == ProgressFailed
}

// ActivityImage pairs one uploaded dataset image with the activity it was generated for.
type ActivityImage struct {
	Activity string `json:"activity"`
	Index    int    `json:"index"`
	ImageID  string `json:"image_id"`
	URL      string `json:"url,omitempty"`
}

// DatasetProgress is the observable state of one dataset assembly run.
type DatasetProgress struct {
	JobID               string          `json:"job_id"`
	Found               bool            `json:"found"`
	DatasetID           *string         `json:"dataset_id"`
	CurrentActivity     string          `json:"current_activity"`
	CompletedActivities int             `json:"completed_activities"`
	TotalActivities     int             `json:"total_activities"`
	Logs                []string        `json:"logs"`
	Status              ProgressStatus  `json:"status"`
	Pairs               []ActivityImage `json:"pairs"`
	ModelID             string          `json:"model_id,omitempty"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// NotFoundProgress is the record returned for a job id with no assembly state.
func NotFoundProgress(jobID string) DatasetProgress {
	return DatasetProgress{
		JobID:  jobID,
		Found:  false,
		Status: ProgressNotFound,
		Logs:   []string{},
		Pairs:  []ActivityImage{},
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (p *DatasetProgress) Clone() DatasetProgress {
	out := *p
	if p.DatasetID != nil {
		id := *p.DatasetID
		out.DatasetID = &id
	}
	out.Logs = append([]string{}, p.Logs...)
	out.Pairs = append([]ActivityImage{}, p.Pairs...)
	return out
}

// Percent is the share of activities done. It stays below 100 until the run
// completes, so the last activity does not read as a finished job.
func (p *DatasetProgress) Percent() int {
	if p.Status == ProgressComplete {
		return 100
	}
	if p.TotalActivities <= 0 {
		return 0
	}
	return min(p.CompletedActivities*100/p.TotalActivities, 99)
}
