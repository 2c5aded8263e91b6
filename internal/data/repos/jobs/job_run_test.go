package jobs

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/storyboard-backend/internal/data/repos/testutil"
	domain "github.com/yungbote/storyboard-backend/internal/domain/jobs"
)

func newRun(owner, jobType, status string, created time.Time) *domain.JobRun {
	return &domain.JobRun{
		ID:        uuid.New(),
		Owner:     owner,
		JobType:   jobType,
		Status:    status,
		Stage:     status,
		Payload:   datatypes.JSON([]byte("{}")),
		Result:    datatypes.JSON([]byte("{}")),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestJobRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	owner := "alice"

	queued := newRun(owner, "dataset_assemble", domain.StatusQueued, now.Add(-3*time.Hour))
	failed := newRun(owner, "dataset_assemble", domain.StatusFailed, now.Add(-2*time.Hour))
	failed.LastErrorAt = ptrTime(now.Add(-2 * time.Hour))
	staleRunning := newRun(owner, "dataset_assemble", domain.StatusRunning, now.Add(-1*time.Hour))
	staleRunning.HeartbeatAt = ptrTime(now.Add(-10 * time.Hour))
	exhausted := newRun(owner, "dataset_assemble", domain.StatusFailed, now.Add(-4*time.Hour))
	exhausted.Attempts = 3
	succeeded := newRun(owner, "dataset_assemble", domain.StatusSucceeded, now.Add(-5*time.Hour))
	final := newRun(owner, "dataset_assemble", domain.StatusFailed, now.Add(-6*time.Hour))
	final.LastErrorAt = ptrTime(now.Add(-6 * time.Hour))
	final.NoRetry = true

	created, err := repo.Create(dbc, []*domain.JobRun{queued, failed, staleRunning, exhausted, succeeded, final})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 6 {
		t.Fatalf("Create: expected 6, got %d", len(created))
	}

	got, err := repo.GetByID(dbc, queued.ID)
	if err != nil || got == nil || got.Owner != owner {
		t.Fatalf("GetByID: err=%v got=%v", err, got)
	}
	missing, err := repo.GetByID(dbc, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("GetByID(missing): err=%v got=%v", err, missing)
	}

	// Claims walk the runnable set oldest first and skip exhausted, final and terminal rows.
	for i, want := range []uuid.UUID{queued.ID, failed.ID, staleRunning.ID} {
		claim, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour)
		if err != nil {
			t.Fatalf("ClaimNextRunnable #%d: %v", i+1, err)
		}
		if claim == nil || claim.ID != want {
			t.Fatalf("ClaimNextRunnable #%d: expected %v got %v", i+1, want, claim)
		}
		if claim.Status != domain.StatusRunning {
			t.Fatalf("ClaimNextRunnable #%d: status=%q", i+1, claim.Status)
		}
	}
	if claim, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour); err != nil || claim != nil {
		t.Fatalf("ClaimNextRunnable #4: expected nil, got %v err=%v", claim, err)
	}

	reloaded, _ := repo.GetByID(dbc, queued.ID)
	if reloaded.Attempts != 1 || reloaded.LockedAt == nil || reloaded.HeartbeatAt == nil {
		t.Fatalf("claimed row not stamped: %+v", reloaded)
	}

	if err := repo.Heartbeat(dbc, failed.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	// A canceled row refuses further progress writes.
	if err := repo.UpdateFields(dbc, queued.ID, map[string]interface{}{"status": domain.StatusCanceled}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	ok, err := repo.UpdateFieldsUnlessStatus(dbc, queued.ID, []string{domain.StatusCanceled}, map[string]interface{}{"progress": 50})
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessStatus: %v", err)
	}
	if ok {
		t.Fatalf("UpdateFieldsUnlessStatus: expected no change on canceled row")
	}
	ok, err = repo.UpdateFieldsUnlessStatus(dbc, failed.ID, []string{domain.StatusCanceled, domain.StatusSucceeded}, map[string]interface{}{"progress": 50})
	if err != nil || !ok {
		t.Fatalf("UpdateFieldsUnlessStatus(running): ok=%v err=%v", ok, err)
	}

	entityID := uuid.New()
	older := newRun(owner, "scene_render", domain.StatusQueued, now.Add(-2*time.Minute))
	older.EntityType, older.EntityID = "diary_entry", &entityID
	newer := newRun(owner, "scene_render", domain.StatusQueued, now.Add(-1*time.Minute))
	newer.EntityType, newer.EntityID = "diary_entry", &entityID
	if _, err := repo.Create(dbc, []*domain.JobRun{older, newer}); err != nil {
		t.Fatalf("seed latest: %v", err)
	}
	latest, err := repo.GetLatestByEntity(dbc, owner, "diary_entry", entityID, "scene_render")
	if err != nil {
		t.Fatalf("GetLatestByEntity: %v", err)
	}
	if latest == nil || latest.ID != newer.ID {
		t.Fatalf("GetLatestByEntity: expected %v got %v", newer.ID, latest)
	}

	exists, err := repo.ExistsRunnable(dbc, owner, "scene_render", "diary_entry", &entityID)
	if err != nil || !exists {
		t.Fatalf("ExistsRunnable(scoped): exists=%v err=%v", exists, err)
	}
	exists, err = repo.ExistsRunnable(dbc, owner, "character_generate", "", nil)
	if err != nil || exists {
		t.Fatalf("ExistsRunnable(other): exists=%v err=%v", exists, err)
	}

	list, err := repo.ListByOwner(dbc, owner, 3)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(list) != 3 || list[0].ID != newer.ID {
		t.Fatalf("ListByOwner: expected newest first, got %d rows", len(list))
	}
}

func TestCreateFillsDefaults(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewJobRunRepo(db, testutil.Logger(t))

	run := &domain.JobRun{Owner: "bob", JobType: "character_generate"}
	if _, err := repo.Create(testutil.DBC(tx), []*domain.JobRun{run}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if run.ID == uuid.Nil || run.Status != domain.StatusQueued || run.Stage != domain.StatusQueued {
		t.Fatalf("defaults not applied: %+v", run)
	}
	if run.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt not set")
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
