package render

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

const pageMargin = "10mm"

// NewBrowserRenderer starts the Playwright driver and returns a Chromium renderer.
// Browsers are launched lazily on the first render.
func NewBrowserRenderer(opts Options, logger *zap.Logger) (*BrowserRenderer, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start Playwright: %w", err)
	}
	l := &playwrightLauncher{pw: pw, headless: opts.Headless, args: opts.Args}
	logger.Info("browser renderer ready",
		zap.Int("pool_size", opts.PoolSize),
		zap.Duration("render_timeout", opts.RenderTimeout),
		zap.Strings("args", opts.Args),
	)
	return newBrowserRenderer(l, opts, logger), nil
}

type playwrightLauncher struct {
	pw       *playwright.Playwright
	headless bool
	args     []string
}

func (l *playwrightLauncher) Launch(timeout time.Duration) (browser, error) {
	b, err := l.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.headless),
		Args:     l.args,
		Timeout:  millis(timeout),
	})
	if err != nil {
		return nil, err
	}
	return &playwrightBrowser{b: b}, nil
}

func (l *playwrightLauncher) Stop() error {
	return l.pw.Stop()
}

type playwrightBrowser struct {
	b playwright.Browser
}

func (b *playwrightBrowser) NewPage() (page, error) {
	p, err := b.b.NewPage()
	if err != nil {
		return nil, err
	}
	return &playwrightPage{p: p}, nil
}

func (b *playwrightBrowser) IsConnected() bool {
	return b.b.IsConnected()
}

func (b *playwrightBrowser) Close() error {
	return b.b.Close()
}

type playwrightPage struct {
	p playwright.Page
}

func (p *playwrightPage) SetContent(html string, timeout time.Duration) error {
	return p.p.SetContent(html, playwright.PageSetContentOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   millis(timeout),
	})
}

func (p *playwrightPage) PDF(timeout time.Duration) ([]byte, error) {
	p.p.SetDefaultTimeout(*millis(timeout))
	return p.p.PDF(playwright.PagePdfOptions{
		Format:          playwright.String("A4"),
		Landscape:       playwright.Bool(true),
		PrintBackground: playwright.Bool(true),
		Margin: &playwright.Margin{
			Top:    playwright.String(pageMargin),
			Right:  playwright.String(pageMargin),
			Bottom: playwright.String(pageMargin),
			Left:   playwright.String(pageMargin),
		},
	})
}

func (p *playwrightPage) Close() error {
	return p.p.Close()
}

// millis converts to Playwright's millisecond timeouts, where 0 means "no limit"
func millis(d time.Duration) *float64 {
	ms := float64(d.Milliseconds())
	if ms < 1 {
		ms = 1
	}
	return playwright.Float(ms)
}
