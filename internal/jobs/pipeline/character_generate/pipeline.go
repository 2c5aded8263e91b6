package character_generate

import (
	jobrt "github.com/yungbote/storyboard-backend/internal/jobs/runtime"
	"github.com/yungbote/storyboard-backend/internal/services"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	req := services.CharacterRequest{
		Username:    jc.PayloadString("username"),
		Description: jc.PayloadString("description"),
		NumImages:   jc.PayloadInt("num_images", services.DefaultCharacterImages),
	}
	if req.Username == "" {
		req.Username = jc.Job.Owner
	}
	if err := req.Normalize(); err != nil {
		jc.FailFinal("validate", err)
		return nil
	}

	jc.Progress("generate", 10, "Generating character candidates")
	res, err := p.characters.Generate(jc.Ctx, jc.JobID(), req)
	if err != nil {
		if jc.Canceled() {
			return nil
		}
		jc.Fail("generate", err)
		return nil
	}

	jc.Succeed("done", res)
	return nil
}
