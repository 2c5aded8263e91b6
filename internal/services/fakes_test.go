package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
	"github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	"github.com/yungbote/storyboard-backend/internal/platform/gcp"
	"github.com/yungbote/storyboard-backend/internal/platform/leonardo"
	"github.com/yungbote/storyboard-backend/internal/platform/poller"
)

// fakeGen serves generation submits, waits and image reads. Job ids are
// prefix+"gen-<n>" in submit order; each completed job yields one image "img-<n>".
type fakeGen struct {
	mu       sync.Mutex
	prefix   string
	prompts  []string
	models   []string
	noIDFor  map[string]bool
	outcomes map[string]poller.Outcome
	n        int
}

func newFakeGen() *fakeGen {
	return &fakeGen{noIDFor: map[string]bool{}, outcomes: map[string]poller.Outcome{}}
}

func (f *fakeGen) next(prompt string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	for phrase := range f.noIDFor {
		if strings.Contains(prompt, phrase) {
			return ""
		}
	}
	f.n++
	return fmt.Sprintf("%sgen-%d", f.prefix, f.n)
}

func (f *fakeGen) Submit(_ context.Context, req leonardo.GenerationRequest) (string, error) {
	return f.next(req.Prompt), nil
}

func (f *fakeGen) GenerateWithModel(_ context.Context, modelID, prompt string, _ int) (string, error) {
	f.mu.Lock()
	f.models = append(f.models, modelID)
	f.mu.Unlock()
	return f.next(prompt), nil
}

func (f *fakeGen) WaitUntilDone(_ context.Context, jobID string, _ poller.Policy) (poller.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.outcomes[jobID]; ok {
		return o, nil
	}
	return poller.OutcomeComplete, nil
}

func (f *fakeGen) FetchImages(_ context.Context, jobID string) ([]leonardo.Image, error) {
	n := strings.TrimPrefix(jobID, f.prefix+"gen-")
	return []leonardo.Image{{ImageID: "img-" + n, URL: "https://cdn.test/img-" + n + ".png"}}, nil
}

func (f *fakeGen) PollStatus(_ context.Context, jobID string) (leonardo.GenerationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.outcomes[jobID] {
	case poller.OutcomeFailed:
		return leonardo.GenerationFailed, nil
	case poller.OutcomeTimedOut:
		return leonardo.GenerationPending, nil
	}
	return leonardo.GenerationComplete, nil
}

func (f *fakeGen) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.prompts...)
}

type fakeDatasets struct {
	mu         sync.Mutex
	id         string
	createErr  error
	creates    int
	failUpload map[string]bool
	uploads    []string
}

func (f *fakeDatasets) CreateDataset(_ context.Context, _ leonardo.DatasetSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	return f.id, f.createErr
}

func (f *fakeDatasets) UploadImage(_ context.Context, datasetID, imageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload[imageID] {
		return errors.New("upload rejected")
	}
	f.uploads = append(f.uploads, imageID)
	return nil
}

// recordingSink keeps a copy of every snapshot it is handed.
type recordingSink struct {
	mu        sync.Mutex
	snapshots []storyboard.DatasetProgress
}

func (s *recordingSink) Save(_ context.Context, p *storyboard.DatasetProgress) error {
	s.mu.Lock()
	s.snapshots = append(s.snapshots, p.Clone())
	s.mu.Unlock()
	return nil
}

// fakeJobs records enqueues. Methods not overridden panic through the nil
// embedded interface.
type fakeJobs struct {
	JobService
	mu       sync.Mutex
	requests []JobRequest
	busy     bool
	latest   *jobs.JobRun
}

func (f *fakeJobs) Enqueue(_ dbctx.Context, req JobRequest) (*jobs.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &jobs.JobRun{ID: id, Owner: req.Owner, JobType: req.JobType, EntityType: req.EntityType, EntityID: req.EntityID, Status: jobs.StatusQueued}, nil
}

func (f *fakeJobs) EnqueueIfIdle(dbc dbctx.Context, req JobRequest) (*jobs.JobRun, bool, error) {
	if f.busy {
		return nil, false, nil
	}
	job, err := f.Enqueue(dbc, req)
	return job, true, err
}

func (f *fakeJobs) LatestForEntity(_ dbctx.Context, _, _ string, _ uuid.UUID, _ string) (*jobs.JobRun, error) {
	return f.latest, nil
}

// fakeBucket stores uploads in memory.
type fakeBucket struct {
	gcp.BucketService
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBucket() *fakeBucket { return &fakeBucket{objects: map[string][]byte{}} }

func (b *fakeBucket) Upload(_ context.Context, category gcp.ObjectCategory, key string, r io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	b.mu.Lock()
	b.objects[string(category)+"/"+key] = buf.Bytes()
	b.mu.Unlock()
	return nil
}

func (b *fakeBucket) PublicURL(category gcp.ObjectCategory, key string) string {
	return "https://storage.test/" + string(category) + "/" + key
}
