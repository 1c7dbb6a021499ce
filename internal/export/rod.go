package export

import (
	"context"
	"fmt"
	"io"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"fabricguide/internal/config"
)

const (
	viewportWidth  = 1440
	viewportHeight = 900
)

// prepareJS hides excluded elements and paints the export background.
const prepareJS = `(cls, bg) => {
	document.documentElement.classList.add('exporting');
	if (bg) { document.body.style.background = bg; }
	if (cls) {
		document.querySelectorAll('.' + cls).forEach(el => { el.style.display = 'none'; });
	}
}`

// rodRasterizer starts a fresh browser for every capture. Exports are rare
// and a short-lived browser leaves nothing behind between requests.
type rodRasterizer struct {
	bin      string
	headless bool
}

func newRodRasterizer(cfg config.ExportConfig) *rodRasterizer {
	return &rodRasterizer{bin: cfg.ChromeBin, headless: cfg.Headless}
}

func (r *rodRasterizer) connect(ctx context.Context) (*rod.Browser, func(), error) {
	l := launcher.New().Context(ctx).Headless(r.headless)
	if r.bin != "" {
		l = l.Bin(r.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("launch chrome: %w", err)
	}
	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, nil, fmt.Errorf("connect to chrome: %w", err)
	}
	release := func() {
		_ = browser.Close()
		l.Kill()
	}
	return browser, release, nil
}

func (r *rodRasterizer) open(browser *rod.Browser, url string, scale float64) (*rod.Page, error) {
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	if scale <= 0 {
		scale = 1
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             viewportWidth,
		Height:            viewportHeight,
		DeviceScaleFactor: scale,
		Mobile:            false,
	}).Call(page); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for load: %w", err)
	}
	return page, nil
}

func (r *rodRasterizer) Screenshot(ctx context.Context, c Capture) ([]byte, error) {
	browser, release, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	page, err := r.open(browser, c.URL, c.Scale)
	if err != nil {
		return nil, err
	}
	if _, err := page.Eval(prepareJS, c.IgnoreClass, c.Background); err != nil {
		return nil, fmt.Errorf("prepare page: %w", err)
	}
	el, err := page.Element(c.Selector)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.Selector, err)
	}
	data, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("screenshot %s: %w", c.Selector, err)
	}
	return data, nil
}

func (r *rodRasterizer) PrintPDF(ctx context.Context, url string) ([]byte, error) {
	browser, release, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	page, err := r.open(browser, url, 1)
	if err != nil {
		return nil, err
	}
	stream, err := page.PDF(&proto.PagePrintToPDF{PrintBackground: true})
	if err != nil {
		return nil, fmt.Errorf("print page: %w", err)
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return data, nil
}
