package model_train_watch

import (
	"errors"

	jobrt "github.com/yungbote/storyboard-backend/internal/jobs/runtime"
	"github.com/yungbote/storyboard-backend/internal/platform/poller"
	"github.com/yungbote/storyboard-backend/internal/services"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	modelID := jc.PayloadString("model_id")
	if modelID == "" {
		jc.FailFinal("validate", errors.New("missing model_id"))
		return nil
	}

	jc.Progress("watch", 5, "Watching model training")
	outcome, err := p.training.Watch(jc.Ctx, modelID)
	if errors.Is(err, services.ErrModelReplaced) {
		jc.Succeed("done", map[string]any{
			"model_id": modelID,
			"outcome":  "replaced",
		})
		return nil
	}
	if outcome == poller.OutcomeCanceled {
		if jc.Canceled() {
			return nil
		}
		jc.Fail("watch", err)
		return nil
	}
	// a remote FAILED or an exhausted poll budget is still a finished watch
	jc.Succeed("done", map[string]any{
		"model_id": modelID,
		"outcome":  string(outcome),
	})
	return nil
}
