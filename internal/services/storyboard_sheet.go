package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/yungbote/storyboard-backend/internal/platform/gcp"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

const (
	sheetColumns   = 2
	sheetCellW     = 512
	sheetCellH     = 384
	sheetCaptionH  = 72
	sheetPadding   = 24
	sheetFontSize  = 20
	maxPanelBytes  = 20 << 20
	sheetKeyFormat = "%s/%s.png"
)

// Panel is one storyboard frame: a rendered scene and its caption.
type Panel struct {
	Caption  string
	ImageURL string
}

// ImageFetcher loads a panel image by URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type httpImageFetcher struct {
	client *http.Client
}

func NewHTTPImageFetcher(client *http.Client) ImageFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &httpImageFetcher{client: client}
}

func (f *httpImageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPanelBytes))
}

// SheetComposer lays rendered scenes out on a single captioned PNG sheet.
type SheetComposer struct {
	bucket  gcp.BucketService
	fetcher ImageFetcher
	face    font.Face
	log     *logger.Logger
}

func NewSheetComposer(baseLog *logger.Logger, bucket gcp.BucketService, fetcher ImageFetcher) (*SheetComposer, error) {
	parsed, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse sheet font: %w", err)
	}
	if fetcher == nil {
		fetcher = NewHTTPImageFetcher(nil)
	}
	return &SheetComposer{
		bucket:  bucket,
		fetcher: fetcher,
		face:    truetype.NewFace(parsed, &truetype.Options{Size: sheetFontSize}),
		log:     baseLog.With("service", "SheetComposer"),
	}, nil
}

// Compose renders panels in order. A panel whose image cannot be loaded keeps
// its caption over an empty cell.
func (c *SheetComposer) Compose(ctx context.Context, panels []Panel) (bytes.Buffer, error) {
	var buf bytes.Buffer
	if len(panels) == 0 {
		return buf, fmt.Errorf("no panels to compose")
	}
	rows := (len(panels) + sheetColumns - 1) / sheetColumns
	cols := sheetColumns
	if len(panels) < cols {
		cols = len(panels)
	}
	width := cols*sheetCellW + (cols+1)*sheetPadding
	height := rows*(sheetCellH+sheetCaptionH) + (rows+1)*sheetPadding

	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetFontFace(c.face)

	for i, p := range panels {
		col, row := i%sheetColumns, i/sheetColumns
		x := sheetPadding + col*(sheetCellW+sheetPadding)
		y := sheetPadding + row*(sheetCellH+sheetCaptionH+sheetPadding)

		dc.SetColor(color.NRGBA{R: 235, G: 235, B: 235, A: 255})
		dc.DrawRectangle(float64(x), float64(y), sheetCellW, sheetCellH)
		dc.Fill()

		if img, err := c.loadPanel(ctx, p.ImageURL); err != nil {
			c.log.Warn("sheet panel image unavailable", "index", i, "error", err)
		} else {
			cell := image.NewRGBA(image.Rect(0, 0, sheetCellW, sheetCellH))
			draw.CatmullRom.Scale(cell, fitRect(img.Bounds(), cell.Bounds()), img, img.Bounds(), draw.Over, nil)
			dc.DrawImage(cell, x, y)
		}

		dc.SetColor(color.NRGBA{R: 40, G: 40, B: 40, A: 255})
		caption := fmt.Sprintf("%d. %s", i+1, p.Caption)
		dc.DrawStringWrapped(caption, float64(x), float64(y+sheetCellH+8), 0, 0, sheetCellW, 1.3, gg.AlignLeft)
	}

	if err := dc.EncodePNG(&buf); err != nil {
		return buf, fmt.Errorf("encode sheet: %w", err)
	}
	return buf, nil
}

// ComposeAndUpload composes the sheet and stores it under key, returning its public URL.
func (c *SheetComposer) ComposeAndUpload(ctx context.Context, username, key string, panels []Panel) (string, error) {
	buf, err := c.Compose(ctx, panels)
	if err != nil {
		return "", err
	}
	objectKey := fmt.Sprintf(sheetKeyFormat, username, key)
	if err := c.bucket.Upload(ctx, gcp.CategorySheet, objectKey, &buf); err != nil {
		return "", fmt.Errorf("upload sheet: %w", err)
	}
	return c.bucket.PublicURL(gcp.CategorySheet, objectKey), nil
}

func (c *SheetComposer) loadPanel(ctx context.Context, url string) (image.Image, error) {
	if url == "" {
		return nil, fmt.Errorf("panel has no image url")
	}
	raw, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode panel: %w", err)
	}
	return img, nil
}

// fitRect scales src into dst keeping its aspect ratio, centered.
func fitRect(src, dst image.Rectangle) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw == 0 || sh == 0 {
		return dst
	}
	dw, dh := dst.Dx(), dst.Dy()
	w, h := dw, sh*dw/sw
	if h > dh {
		h = dh
		w = sw * dh / sh
	}
	x0 := dst.Min.X + (dw-w)/2
	y0 := dst.Min.Y + (dh-h)/2
	return image.Rect(x0, y0, x0+w, y0+h)
}
