package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"attendance-sheet-go/metrics"
)

var (
	ErrRender = errors.New("render failed")
	ErrClosed = errors.New("renderer is closed")
	ErrLaunch = errors.New("browser launch failed")
)

// Renderer turns a complete HTML document into PDF bytes
type Renderer interface {
	Render(ctx context.Context, html string) ([]byte, error)

	// Close releases every browser and the driver behind the renderer.
	Close() error

	Name() string
}

// Options controls browser reuse and time limits
type Options struct {
	// PoolSize bounds the number of browsers. Zero launches a fresh browser
	// for every render and closes it afterwards.
	PoolSize      int
	RenderTimeout time.Duration
	LaunchTimeout time.Duration
	Headless      bool
	Args          []string
}

// launcher starts browser processes
type launcher interface {
	Launch(timeout time.Duration) (browser, error)
	Stop() error
}

type browser interface {
	NewPage() (page, error)
	IsConnected() bool
	Close() error
}

type page interface {
	// SetContent loads html and waits until the network is idle.
	SetContent(html string, timeout time.Duration) error
	// PDF prints the page as landscape A4 with backgrounds and 10mm margins.
	PDF(timeout time.Duration) ([]byte, error)
	Close() error
}

// BrowserRenderer renders through a headless browser.
// Pooled browsers are reused until a render fails or they disconnect.
type BrowserRenderer struct {
	launcher launcher
	opts     Options
	logger   *zap.Logger

	slots chan struct{} // nil when not pooled

	mu     sync.Mutex
	idle   []browser
	closed bool
}

func newBrowserRenderer(l launcher, opts Options, logger *zap.Logger) *BrowserRenderer {
	r := &BrowserRenderer{launcher: l, opts: opts, logger: logger}
	if opts.PoolSize > 0 {
		r.slots = make(chan struct{}, opts.PoolSize)
	}
	return r
}

func (r *BrowserRenderer) Name() string {
	return "chromium"
}

func (r *BrowserRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.RenderTimeout)
	defer cancel()

	if r.slots != nil {
		select {
		case r.slots <- struct{}{}:
			defer func() { <-r.slots }()
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for a browser: %w", ErrRender, ctx.Err())
		}
	}

	b, err := r.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}

	type result struct {
		pdf []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		pdf, err := r.print(ctx, b, html)
		done <- result{pdf: pdf, err: err}
	}()

	select {
	case res := <-done:
		r.release(b, res.err == nil)
		if res.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRender, res.err)
		}
		return res.pdf, nil
	case <-ctx.Done():
		// Closing the browser unblocks the page calls still in flight.
		r.closeBrowser(b)
		return nil, fmt.Errorf("%w: %w", ErrRender, ctx.Err())
	}
}

// print runs one page through the browser; the page is always closed
func (r *BrowserRenderer) print(ctx context.Context, b browser, html string) ([]byte, error) {
	p, err := b.NewPage()
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			r.logger.Debug("failed to close page", zap.Error(err))
		}
	}()

	if err := p.SetContent(html, remaining(ctx)); err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	pdf, err := p.PDF(remaining(ctx))
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return pdf, nil
}

// acquire returns a connected idle browser or launches a new one
func (r *BrowserRenderer) acquire(ctx context.Context) (browser, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	for len(r.idle) > 0 {
		b := r.idle[len(r.idle)-1]
		r.idle = r.idle[:len(r.idle)-1]
		if b.IsConnected() {
			r.mu.Unlock()
			return b, nil
		}
		r.logger.Warn("discarding disconnected browser")
		r.closeBrowser(b)
	}
	r.mu.Unlock()

	timeout := r.opts.LaunchTimeout
	if left := remaining(ctx); left < timeout {
		timeout = left
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, context.DeadlineExceeded)
	}

	b, err := r.launcher.Launch(timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	metrics.BrowsersActive.Inc()
	return b, nil
}

// release keeps a healthy pooled browser for the next render and closes any other
func (r *BrowserRenderer) release(b browser, healthy bool) {
	if r.slots == nil || !healthy || !b.IsConnected() {
		r.closeBrowser(b)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.closeBrowser(b)
		return
	}
	r.idle = append(r.idle, b)
}

func (r *BrowserRenderer) closeBrowser(b browser) {
	if err := b.Close(); err != nil {
		r.logger.Warn("failed to close browser", zap.Error(err))
	}
	metrics.BrowsersActive.Dec()
}

// Close shuts down idle browsers and stops the driver.
// Renders still in flight close their own browsers.
func (r *BrowserRenderer) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	idle := r.idle
	r.idle = nil
	r.mu.Unlock()

	for _, b := range idle {
		r.closeBrowser(b)
	}
	if err := r.launcher.Stop(); err != nil {
		return fmt.Errorf("stop browser driver: %w", err)
	}
	return nil
}

func remaining(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline)
}
