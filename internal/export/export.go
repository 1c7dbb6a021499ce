// Package export turns the rendered blueprint into a downloadable image.
//
// A PNG screenshot of the blueprint region is attempted first. When the
// browser cannot produce it, the page is printed to PDF instead so the user
// always ends up with something to save.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"fabricguide/internal/config"
)

// Format identifies the kind of file produced.
type Format string

const (
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

// ContentType is the MIME type matching the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "image/png"
}

// Artifact is an exported file held in memory.
type Artifact struct {
	Name   string
	Format Format
	Data   []byte
}

// ContentType is the MIME type of the artifact.
func (a *Artifact) ContentType() string { return a.Format.ContentType() }

// Capture describes the region to rasterize.
type Capture struct {
	URL         string
	Selector    string
	IgnoreClass string
	Background  string
	Scale       float64
}

// Rasterizer renders a page to bytes.
type Rasterizer interface {
	Screenshot(ctx context.Context, c Capture) ([]byte, error)
	PrintPDF(ctx context.Context, url string) ([]byte, error)
}

// ErrEmptyCapture reports a capture that succeeded without producing bytes.
var ErrEmptyCapture = errors.New("rasterizer returned no data")

// Exporter produces blueprint downloads.
type Exporter struct {
	cfg    config.ExportConfig
	url    string
	raster Rasterizer
	logger *zap.Logger
}

// New builds an exporter backed by headless Chrome. baseURL is where the
// blueprint page is served.
func New(cfg config.ExportConfig, baseURL string, logger *zap.Logger) *Exporter {
	return NewWithRasterizer(cfg, baseURL, newRodRasterizer(cfg), logger)
}

// NewWithRasterizer builds an exporter around any rasterizer.
func NewWithRasterizer(cfg config.ExportConfig, baseURL string, raster Rasterizer, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		cfg:    cfg,
		url:    PageURL(baseURL),
		raster: raster,
		logger: logger,
	}
}

// PageURL is the export-mode address of the blueprint page.
func PageURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/?export=1"
}

// Export captures the blueprint as PNG, falling back to a PDF print of the
// whole page. Neither path is retried. Each attempt gets its own timeout so
// a screenshot that runs out of time still leaves the print a full budget.
func (e *Exporter) Export(ctx context.Context) (*Artifact, error) {
	start := time.Now()
	shotCtx, cancel := e.attemptContext(ctx)
	png, err := e.raster.Screenshot(shotCtx, Capture{
		URL:         e.url,
		Selector:    e.cfg.Selector,
		IgnoreClass: e.cfg.IgnoreClass,
		Background:  e.cfg.Background,
		Scale:       e.cfg.Scale,
	})
	cancel()
	if err == nil && len(png) == 0 {
		err = ErrEmptyCapture
	}
	if err == nil {
		e.logger.Info("blueprint exported", zap.String("format", string(FormatPNG)), zap.Int("bytes", len(png)), zap.Duration("took", time.Since(start)))
		return e.artifact(FormatPNG, png), nil
	}
	e.logger.Warn("image export failed, printing page instead", zap.Error(err))

	if ctx.Err() != nil {
		return nil, fmt.Errorf("export blueprint: %w", ctx.Err())
	}
	printCtx, cancel := e.attemptContext(ctx)
	defer cancel()
	pdf, pdfErr := e.raster.PrintPDF(printCtx, e.url)
	if pdfErr == nil && len(pdf) == 0 {
		pdfErr = ErrEmptyCapture
	}
	if pdfErr != nil {
		return nil, fmt.Errorf("export blueprint: %w (print fallback: %v)", err, pdfErr)
	}
	e.logger.Info("blueprint exported", zap.String("format", string(FormatPDF)), zap.Int("bytes", len(pdf)), zap.Duration("took", time.Since(start)))
	return e.artifact(FormatPDF, pdf), nil
}

func (e *Exporter) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, e.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func (e *Exporter) artifact(f Format, data []byte) *Artifact {
	name := e.cfg.FileName
	if name == "" {
		name = "Lestel-Fabric-Blueprint"
	}
	return &Artifact{Name: name + "." + string(f), Format: f, Data: data}
}
