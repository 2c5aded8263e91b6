package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/storyboard-backend/internal/data/repos"
	"github.com/yungbote/storyboard-backend/internal/data/repos/testutil"
	pkgerrors "github.com/yungbote/storyboard-backend/internal/pkg/errors"
	"github.com/yungbote/storyboard-backend/internal/platform/gcp"
)

func TestParseScenes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"plain", "jogging at dawn\nbaking bread\n", []string{"jogging at dawn", "baking bread"}},
		{"blank and crlf", "\r\n  reading a book  \r\n\r\ncycling\r\n", []string{"reading a book", "cycling"}},
		{"markers and quotes", "- \"painting a landscape\"\n* listening to jazz\n• swimming", []string{"painting a landscape", "listening to jazz", "swimming"}},
		{"echoed labels", "Output:\nEntry: something\nwalking the dog", []string{"walking the dog"}},
		{"empty", "  \n\n", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseScenes(tc.raw); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseScenes(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

type fakeVision struct {
	gcp.Vision
	text  string
	err   error
	hints []string
}

func (f *fakeVision) ExtractText(_ context.Context, _ []byte, hints []string) (string, error) {
	f.hints = hints
	return f.text, f.err
}

type fakeSplitter struct {
	calls  int
	scenes []string
}

func (f *fakeSplitter) Split(_ context.Context, text string) ([]string, error) {
	f.calls++
	return f.scenes, nil
}

func newTestDiaryService(t *testing.T, bucket *fakeBucket, vision gcp.Vision, splitter SceneSplitter) *DiaryService {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	return NewDiaryService(log, bucket, vision, splitter, repos.NewDiaryEntryRepo(db, log), repos.NewGeneratedImageRepo(db, log), []string{"zh"})
}

func TestDiaryUploadStoresPageAndScenes(t *testing.T) {
	bucket := newFakeBucket()
	vision := &fakeVision{text: "今天我去公园散步，然后看书。"}
	splitter := &fakeSplitter{scenes: []string{"walking in the park", "reading a book"}}
	s := newTestDiaryService(t, bucket, vision, splitter)

	view, err := s.Upload(context.Background(), DiaryUpload{Username: " dave ", Filename: "Page.JPG", Data: []byte("jpeg-bytes")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if view.Entry.Username != "dave" || !strings.HasSuffix(view.Entry.ImageKey, ".jpg") {
		t.Fatalf("entry = %+v", view.Entry)
	}
	if _, ok := bucket.objects[string(gcp.CategoryDiaryPage)+"/"+view.Entry.ImageKey]; !ok {
		t.Fatalf("page not uploaded, objects = %d", len(bucket.objects))
	}
	if !reflect.DeepEqual(view.Scenes, splitter.scenes) || !reflect.DeepEqual(vision.hints, []string{"zh"}) {
		t.Fatalf("scenes = %q hints = %q", view.Scenes, vision.hints)
	}

	got, err := s.Get(context.Background(), view.Entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(got.Scenes, splitter.scenes) || got.Entry.ExtractedText != vision.text || len(got.Images) != 0 {
		t.Fatalf("view = %+v", got)
	}
}

func TestDiaryUploadWithoutTextKeepsEntry(t *testing.T) {
	splitter := &fakeSplitter{}
	s := newTestDiaryService(t, newFakeBucket(), &fakeVision{err: gcp.ErrNoText}, splitter)

	view, err := s.Upload(context.Background(), DiaryUpload{Username: "dave", Filename: "blank.png", Data: []byte("png")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(view.Scenes) != 0 || splitter.calls != 0 {
		t.Fatalf("scenes = %q splitter calls = %d", view.Scenes, splitter.calls)
	}
}

func TestDiaryUploadErrors(t *testing.T) {
	s := newTestDiaryService(t, newFakeBucket(), &fakeVision{err: errors.New("vision down")}, &fakeSplitter{})
	ctx := context.Background()

	if _, err := s.Upload(ctx, DiaryUpload{Data: []byte("x")}); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("missing username err = %v", err)
	}
	if _, err := s.Upload(ctx, DiaryUpload{Username: "dave"}); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("missing image err = %v", err)
	}
	if _, err := s.Upload(ctx, DiaryUpload{Username: "dave", Data: []byte("x")}); err == nil || !strings.Contains(err.Error(), "vision down") {
		t.Fatalf("vision failure err = %v", err)
	}
	if _, err := s.Get(ctx, uuid.New()); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("Get unknown err = %v", err)
	}
}
