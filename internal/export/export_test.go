package export

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fabricguide/internal/config"
)

type fakeRasterizer struct {
	png      []byte
	pngErr   error
	pdf      []byte
	pdfErr   error
	captures []Capture
	printed  []string
}

func (f *fakeRasterizer) Screenshot(_ context.Context, c Capture) ([]byte, error) {
	f.captures = append(f.captures, c)
	return f.png, f.pngErr
}

func (f *fakeRasterizer) PrintPDF(_ context.Context, url string) ([]byte, error) {
	f.printed = append(f.printed, url)
	return f.pdf, f.pdfErr
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:8090/?export=1", PageURL("http://127.0.0.1:8090"))
	assert.Equal(t, "http://127.0.0.1:8090/?export=1", PageURL("http://127.0.0.1:8090/"))
}

func TestExportPNG(t *testing.T) {
	raster := &fakeRasterizer{png: []byte{0x89, 'P', 'N', 'G'}}
	e := NewWithRasterizer(config.Default().Export, "http://example.test", raster, nil)

	art, err := e.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Lestel-Fabric-Blueprint.png", art.Name)
	assert.Equal(t, "image/png", art.ContentType())
	assert.Empty(t, raster.printed)

	require.Len(t, raster.captures, 1)
	c := raster.captures[0]
	assert.Equal(t, "http://example.test/?export=1", c.URL)
	assert.Equal(t, "#architecture-plaat", c.Selector)
	assert.Equal(t, "export-ignore", c.IgnoreClass)
	assert.Equal(t, "#f8fafc", c.Background)
	assert.Equal(t, 2.0, c.Scale)
}

func TestExportFallsBackToPDF(t *testing.T) {
	raster := &fakeRasterizer{pngErr: errors.New("no chrome"), pdf: []byte("%PDF-1.7")}
	e := NewWithRasterizer(config.Default().Export, "http://example.test", raster, nil)

	art, err := e.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Lestel-Fabric-Blueprint.pdf", art.Name)
	assert.Equal(t, FormatPDF, art.Format)
	assert.Equal(t, "application/pdf", art.ContentType())
	assert.Equal(t, []string{"http://example.test/?export=1"}, raster.printed)
	assert.Len(t, raster.captures, 1, "png capture is not retried")
}

func TestExportEmptyScreenshotFallsBack(t *testing.T) {
	raster := &fakeRasterizer{pdf: []byte("%PDF")}
	e := NewWithRasterizer(config.Default().Export, "http://example.test", raster, nil)

	art, err := e.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, art.Format)
}

func TestExportBothFail(t *testing.T) {
	pngErr := errors.New("no chrome")
	raster := &fakeRasterizer{pngErr: pngErr, pdfErr: errors.New("still no chrome")}
	e := NewWithRasterizer(config.Default().Export, "http://example.test", raster, nil)

	art, err := e.Export(context.Background())
	assert.Nil(t, art)
	require.Error(t, err)
	assert.ErrorIs(t, err, pngErr)
	assert.Contains(t, err.Error(), "still no chrome")
}

// slowRasterizer never finishes a screenshot before its deadline.
type slowRasterizer struct {
	printErr error
}

func (s *slowRasterizer) Screenshot(ctx context.Context, _ Capture) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *slowRasterizer) PrintPDF(ctx context.Context, _ string) ([]byte, error) {
	s.printErr = ctx.Err()
	if s.printErr != nil {
		return nil, s.printErr
	}
	return []byte("%PDF"), nil
}

func TestExportScreenshotTimeoutStillPrints(t *testing.T) {
	cfg := config.Default().Export
	cfg.Timeout = 50 * time.Millisecond
	raster := &slowRasterizer{}
	e := NewWithRasterizer(cfg, "http://example.test", raster, nil)

	art, err := e.Export(context.Background())
	require.NoError(t, err)
	assert.NoError(t, raster.printErr)
	assert.Equal(t, FormatPDF, art.Format)
}

func TestExportCanceledParentSkipsPrint(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	raster := &fakeRasterizer{pngErr: context.Canceled, pdf: []byte("%PDF")}
	e := NewWithRasterizer(config.Default().Export, "http://example.test", raster, nil)

	_, err := e.Export(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, raster.printed)
}

func TestExportCustomFileName(t *testing.T) {
	cfg := config.Default().Export
	cfg.FileName = "blueprint"
	e := NewWithRasterizer(cfg, "http://example.test", &fakeRasterizer{png: []byte{1}}, nil)

	art, err := e.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "blueprint.png", art.Name)
}

// TestRodExport drives a real browser; set FABRICGUIDE_TEST_CHROME=1 to run it.
func TestRodExport(t *testing.T) {
	if os.Getenv("FABRICGUIDE_TEST_CHROME") != "1" {
		t.Skip("FABRICGUIDE_TEST_CHROME not set")
	}
	r := newRodRasterizer(config.Default().Export)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	data, err := r.PrintPDF(ctx, "data:text/html,<h1>blueprint</h1>")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
