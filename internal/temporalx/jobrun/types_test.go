package jobrun

import (
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
)

func TestTickResultTerminal(t *testing.T) {
	cases := []struct {
		status  string
		noRetry bool
		want    bool
	}{
		{jobs.StatusQueued, false, false},
		{jobs.StatusRunning, false, false},
		{jobs.StatusFailed, false, false},
		{jobs.StatusFailed, true, true},
		{jobs.StatusSucceeded, false, true},
		{jobs.StatusCanceled, false, true},
	}
	for _, tc := range cases {
		job := &jobs.JobRun{ID: uuid.New(), Status: tc.status, NoRetry: tc.noRetry}
		if got := resultOf(job).terminal(); got != tc.want {
			t.Fatalf("terminal(status=%s no_retry=%v) = %v, want %v", tc.status, tc.noRetry, got, tc.want)
		}
	}
}
