package scene_render

import (
	"errors"
	"fmt"

	jobrt "github.com/yungbote/storyboard-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	diaryID, ok := jc.PayloadUUID("diary_id")
	if !ok {
		jc.FailFinal("validate", errors.New("missing diary_id"))
		return nil
	}

	jc.Progress("render", 1, "Rendering scenes")
	res, err := p.render.Render(jc.Ctx, jc.JobID(), diaryID, func(done, total int) {
		// leave headroom for the sheet
		jc.Progress("render", done*90/total, fmt.Sprintf("Rendered %d of %d scenes", done, total))
	})
	if err != nil {
		if jc.Canceled() {
			return nil
		}
		jc.Fail("render", err)
		return nil
	}
	jc.Succeed("done", res)
	return nil
}
