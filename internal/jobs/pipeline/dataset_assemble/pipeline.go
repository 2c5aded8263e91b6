package dataset_assemble

import (
	"context"
	"errors"

	"github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	jobrt "github.com/yungbote/storyboard-backend/internal/jobs/runtime"
	"github.com/yungbote/storyboard-backend/internal/services"
)

// jobSink stores each snapshot and forwards it to the owner's event stream.
type jobSink struct {
	store services.ProgressStore
	jc    *jobrt.Context
}

func (s *jobSink) Save(ctx context.Context, p *storyboard.DatasetProgress) error {
	if err := s.store.Save(ctx, p); err != nil {
		return err
	}
	if s.jc.Notify != nil && s.jc.Job != nil {
		msg := ""
		if n := len(p.Logs); n > 0 {
			msg = p.Logs[n-1]
		}
		s.jc.Notify.JobProgress(s.jc.Job.Owner, s.jc.Job, string(p.Status), p.Percent(), msg)
	}
	return nil
}

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	in := services.AssemblyInput{
		JobID:       jc.Job.ID.String(),
		Username:    jc.PayloadString("username"),
		DatasetName: jc.PayloadString("dataset_name"),
		SeedImageID: jc.PayloadString("seed_image_id"),
		Description: jc.PayloadString("description"),
		Catalog:     p.catalog,
		AutoTrain:   jc.PayloadBool("auto_train"),
	}
	if in.Username == "" {
		in.Username = jc.Job.Owner
	}
	if in.SeedImageID == "" {
		jc.FailFinal("validate", errors.New("missing seed_image_id"))
		return nil
	}

	final := p.assembler.Assemble(jc.Ctx, in, &jobSink{store: p.store, jc: jc})
	if jc.Canceled() {
		return nil
	}
	if final.Status == storyboard.ProgressFailed {
		msg := "dataset assembly failed"
		if n := len(final.Logs); n > 0 {
			msg = final.Logs[n-1]
		}
		// a rerun would create another dataset and regenerate every image
		jc.FailFinal("assemble", errors.New(msg))
		return nil
	}
	// the snapshot already lives in job_run.result
	jc.Succeed("done", nil)
	return nil
}
