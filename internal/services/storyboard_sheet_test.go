package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/yungbote/storyboard-backend/internal/data/repos/testutil"
	"github.com/yungbote/storyboard-backend/internal/platform/gcp"
)

type fakeFetcher struct {
	images map[string][]byte
	calls  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	raw, ok := f.images[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return raw, nil
}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestSheetComposeLaysOutPanels(t *testing.T) {
	fetcher := &fakeFetcher{images: map[string][]byte{
		"https://cdn.test/a.png": solidPNG(t, 64, 48, color.NRGBA{R: 255, A: 255}),
	}}
	c, err := NewSheetComposer(testutil.Logger(t), newFakeBucket(), fetcher)
	if err != nil {
		t.Fatalf("NewSheetComposer: %v", err)
	}

	buf, err := c.Compose(context.Background(), []Panel{
		{Caption: "reading", ImageURL: "https://cdn.test/a.png"},
		{Caption: "swimming", ImageURL: "https://cdn.test/missing.png"},
		{Caption: "cooking"},
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	sheet, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode sheet: %v", err)
	}
	wantW := sheetColumns*sheetCellW + (sheetColumns+1)*sheetPadding
	wantH := 2*(sheetCellH+sheetCaptionH) + 3*sheetPadding
	if b := sheet.Bounds(); b.Dx() != wantW || b.Dy() != wantH {
		t.Fatalf("sheet size = %dx%d, want %dx%d", b.Dx(), b.Dy(), wantW, wantH)
	}
	// center of the first cell carries the red panel
	r, g, _, _ := sheet.At(sheetPadding+sheetCellW/2, sheetPadding+sheetCellH/2).RGBA()
	if r>>8 < 200 || g>>8 > 50 {
		t.Fatalf("first cell center = r%d g%d", r>>8, g>>8)
	}
	if len(fetcher.calls) != 2 {
		t.Fatalf("fetches = %v", fetcher.calls)
	}
}

func TestSheetComposeSinglePanelWidth(t *testing.T) {
	c, err := NewSheetComposer(testutil.Logger(t), newFakeBucket(), &fakeFetcher{})
	if err != nil {
		t.Fatalf("NewSheetComposer: %v", err)
	}
	buf, err := c.Compose(context.Background(), []Panel{{Caption: "alone"}})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	cfg, err := png.DecodeConfig(&buf)
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg.Width != sheetCellW+2*sheetPadding {
		t.Fatalf("width = %d", cfg.Width)
	}
	if _, err := c.Compose(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty panel list")
	}
}

func TestSheetComposeAndUpload(t *testing.T) {
	bucket := newFakeBucket()
	c, err := NewSheetComposer(testutil.Logger(t), bucket, &fakeFetcher{})
	if err != nil {
		t.Fatalf("NewSheetComposer: %v", err)
	}
	url, err := c.ComposeAndUpload(context.Background(), "dave", "diary-1", []Panel{{Caption: "reading"}})
	if err != nil {
		t.Fatalf("ComposeAndUpload: %v", err)
	}
	key := string(gcp.CategorySheet) + "/dave/diary-1.png"
	raw, ok := bucket.objects[key]
	if !ok || len(raw) == 0 {
		t.Fatalf("sheet not stored under %s", key)
	}
	if url != "https://storage.test/"+key {
		t.Fatalf("url = %q", url)
	}
}

func TestFitRect(t *testing.T) {
	dst := image.Rect(0, 0, 512, 384)
	cases := []struct {
		name string
		src  image.Rectangle
		want image.Rectangle
	}{
		{"same ratio", image.Rect(0, 0, 1024, 768), image.Rect(0, 0, 512, 384)},
		{"wide", image.Rect(0, 0, 1024, 256), image.Rect(0, 128, 512, 256)},
		{"tall", image.Rect(0, 0, 384, 768), image.Rect(160, 0, 352, 384)},
		{"empty", image.Rect(0, 0, 0, 0), dst},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := fitRect(tc.src, dst); got != tc.want {
				t.Fatalf("fitRect(%v) = %v, want %v", tc.src, got, tc.want)
			}
		})
	}
}
