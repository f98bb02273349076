// Package browser connects the surface to a real Chromium, driven either by
// Playwright or by the DevTools protocol through chromedp.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"

	"github.com/polzovatel/seckill-agent/internal/surface"
)

const (
	DriverPlaywright = "playwright"
	DriverChromedp   = "chromedp"

	defaultNavTimeout = 30 * time.Second
	installEnv        = "SECKILL_INSTALL_BROWSERS"
)

type Options struct {
	Driver       string        `mapstructure:"driver"`
	Headless     bool          `mapstructure:"headless"`
	RemoteURL    string        `mapstructure:"remote_url"`
	StorageState string        `mapstructure:"storage_state"`
	UserDataDir  string        `mapstructure:"user_data_dir"`
	NavTimeout   time.Duration `mapstructure:"nav_timeout"`
}

// Session is an open page the orchestrator can drive.
type Session interface {
	surface.Surface
	// SaveState persists cookies so the next run starts logged in.
	SaveState(ctx context.Context, path string) error
	Close(ctx context.Context) error
}

// Open starts the configured engine and returns a session on a fresh page.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (Session, error) {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = defaultNavTimeout
	}
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverPlaywright:
		l, err := NewLauncher(ctx, opts)
		if err != nil {
			return nil, err
		}
		page, err := l.NewPage(ctx, opts.StorageState)
		if err != nil {
			_ = l.Close()
			return nil, err
		}
		logger.Info().Str("driver", DriverPlaywright).Bool("headless", opts.Headless).Msg("browser ready")
		return page, nil
	case DriverChromedp:
		c, err := NewChrome(ctx, opts)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("driver", DriverChromedp).Str("remote", opts.RemoteURL).Msg("browser ready")
		return c, nil
	default:
		return nil, fmt.Errorf("unknown browser driver: %s (use '%s' or '%s')", opts.Driver, DriverPlaywright, DriverChromedp)
	}
}

// Launcher owns playwright lifecycle.
type Launcher struct {
	pw         *playwright.Playwright
	browser    playwright.Browser
	navTimeout time.Duration
}

func NewLauncher(ctx context.Context, opts Options) (*Launcher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ensureDeps(); err != nil {
		return nil, err
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	var browser playwright.Browser
	if opts.RemoteURL != "" {
		browser, err = pw.Chromium.ConnectOverCDP(opts.RemoteURL)
	} else {
		browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(opts.Headless),
			Args: []string{
				"--disable-dev-shm-usage",
				"--no-sandbox",
				"--disable-blink-features=AutomationControlled",
			},
		})
	}
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	return &Launcher{pw: pw, browser: browser, navTimeout: opts.NavTimeout}, nil
}

// NewPage opens a page in a new context, loading cookies from storagePath
// when the file exists.
func (l *Launcher) NewPage(ctx context.Context, storagePath string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
		Viewport:          &playwright.Size{Width: 1280, Height: 800},
	}
	if strings.TrimSpace(storagePath) != "" {
		if _, err := os.Stat(storagePath); err == nil {
			opts.StorageStatePath = playwright.String(storagePath)
		}
	}
	bctx, err := l.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	page.SetDefaultTimeout(float64(l.navTimeout.Milliseconds()))

	p := &Page{launcher: l, context: bctx, page: page}
	p.pageSurface = &pageSurface{d: &playwrightDriver{page: page, navTimeout: l.navTimeout}}
	return p, nil
}

func (l *Launcher) Close() error {
	if l.browser != nil {
		_ = l.browser.Close()
	}
	if l.pw != nil {
		return l.pw.Stop()
	}
	return nil
}

// Page is a Playwright-backed Session.
type Page struct {
	*pageSurface
	launcher *Launcher
	context  playwright.BrowserContext
	page     playwright.Page
}

func (p *Page) SaveState(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	state, err := p.context.StorageState()
	if err != nil {
		return wrap(err)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal storage: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func (p *Page) Close(ctx context.Context) error {
	_ = ctx
	if p.page != nil {
		_ = p.page.Close()
	}
	if p.context != nil {
		_ = p.context.Close()
	}
	return p.launcher.Close()
}

type playwrightDriver struct {
	page       playwright.Page
	navTimeout time.Duration
}

func (d *playwrightDriver) evaluate(ctx context.Context, fn string, arg map[string]any, out any) error {
	if arg == nil {
		arg = map[string]any{}
	}
	val, err := call(ctx, func() (any, error) { return d.page.Evaluate(fn, arg) })
	if err != nil {
		return wrap(err)
	}
	return decode(val, out)
}

func (d *playwrightDriver) location(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.page.URL(), nil
}

func (d *playwrightDriver) navigate(ctx context.Context, url string) error {
	_, err := call(ctx, func() (playwright.Response, error) {
		return d.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(timeoutMillis(ctx, d.navTimeout)),
		})
	})
	return wrap(err)
}

func (d *playwrightDriver) reload(ctx context.Context) error {
	_, err := call(ctx, func() (playwright.Response, error) {
		return d.page.Reload(playwright.PageReloadOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(timeoutMillis(ctx, d.navTimeout)),
		})
	})
	return wrap(err)
}

// call runs fn on its own goroutine so ctx bounds a driver call that takes no
// context. fn keeps running after ctx ends until the driver's own timeout.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

// timeoutMillis is the time left on ctx, capped at def.
func timeoutMillis(ctx context.Context, def time.Duration) float64 {
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < def {
			def = left
		}
	}
	if def < time.Millisecond {
		def = time.Millisecond
	}
	return float64(def.Milliseconds())
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("playwright: %w", err)
}

func parseBoolEnv(name string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(name))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

// ensureDeps downloads the Chromium build on request. Browsers are usually
// preinstalled, so this is opt-in.
func ensureDeps() error {
	if !parseBoolEnv(installEnv, false) {
		return nil
	}
	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		return fmt.Errorf("install playwright browsers: %w", err)
	}
	return nil
}
