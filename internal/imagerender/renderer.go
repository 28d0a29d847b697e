package imagerender

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/docviewer/internal/viewer"
)

// ColorMode defines the color mode for rendering
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

// Options configures a FitzRenderer.
type Options struct {
	BaseDPI   float64 // DPI at scale 1.0
	Quality   int     // JPEG quality 1..100
	ColorMode ColorMode
}

// FitzRenderer renders pages with MuPDF (go-fitz). Page counts come from
// pdfcpu when the resource is a PDF, with MuPDF as the fallback.
type FitzRenderer struct {
	opts Options
}

var _ viewer.Renderer = (*FitzRenderer)(nil)

// NewFitzRenderer creates a renderer, filling in defaults.
func NewFitzRenderer(opts Options) *FitzRenderer {
	if opts.BaseDPI <= 0 {
		opts.BaseDPI = 96
	}
	if opts.Quality < 1 || opts.Quality > 100 {
		opts.Quality = 85
	}
	if opts.ColorMode != ColorGray {
		opts.ColorMode = ColorRGB
	}
	return &FitzRenderer{opts: opts}
}

// Load returns the number of pages in res.
func (r *FitzRenderer) Load(ctx context.Context, res *viewer.Resource) (int, error) {
	if res == nil || len(res.Data) == 0 {
		return 0, fmt.Errorf("load: empty resource")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if res.MIME == "application/pdf" {
		n, err := api.PageCount(bytes.NewReader(res.Data), model.NewDefaultConfiguration())
		if err == nil {
			return n, nil
		}
		log.Debug().Err(err).Msg("pdfcpu page count failed; falling back to MuPDF")
	}

	doc, err := fitz.NewFromMemory(res.Data)
	if err != nil {
		return 0, fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// RenderPage renders a 1-based page as JPEG at BaseDPI*scale.
func (r *FitzRenderer) RenderPage(ctx context.Context, res *viewer.Resource, page int, scale float64) (*viewer.Surface, error) {
	if res == nil || len(res.Data) == 0 {
		return nil, fmt.Errorf("render: empty resource")
	}
	if scale <= 0 {
		return nil, fmt.Errorf("render: invalid scale %v", scale)
	}

	doc, err := fitz.NewFromMemory(res.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	if page < 1 || page > doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", page, doc.NumPage())
	}
	// the open can be slow for large documents
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// go-fitz uses 0-based indexing
	img, err := doc.ImageDPI(page-1, DPIForScale(r.opts.BaseDPI, scale))
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", page, err)
	}

	data, err := EncodeJPEG(img, r.opts.ColorMode, r.opts.Quality)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()

	log.Debug().
		Int("page", page).
		Float64("scale", scale).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Int("jpeg_size", len(data)).
		Str("color", string(r.opts.ColorMode)).
		Msg("rendered page")

	return &viewer.Surface{
		Page:   page,
		Scale:  scale,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		MIME:   "image/jpeg",
		Image:  data,
	}, nil
}

// DPIForScale converts a zoom scale into a rasterization DPI.
func DPIForScale(base, scale float64) float64 {
	return base * scale
}

// EncodeJPEG encodes img, converting to grayscale first when asked.
func EncodeJPEG(img image.Image, mode ColorMode, quality int) ([]byte, error) {
	final := img
	if mode == ColorGray {
		bounds := img.Bounds()
		gray := image.NewGray(bounds)
		draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
		final = gray
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, final, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
