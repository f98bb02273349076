package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Chrome is a DevTools-protocol Session. It either launches a local Chromium
// or attaches to one already running at Options.RemoteURL.
type Chrome struct {
	*pageSurface
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
}

func execOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1280, 800),
	)
	if !opts.Headless {
		out = append(out, chromedp.Flag("headless", false))
	}
	if opts.UserDataDir != "" {
		out = append(out, chromedp.UserDataDir(opts.UserDataDir))
	}
	return out
}

func NewChrome(ctx context.Context, opts Options) (*Chrome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// The browser outlives the startup context; Close tears it down.
	base := context.WithoutCancel(ctx)
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(base, opts.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(base, execOptions(opts)...)
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	// first Run starts the browser
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, wrapCDP(err)
	}

	navTimeout := opts.NavTimeout
	if navTimeout <= 0 {
		navTimeout = defaultNavTimeout
	}
	c := &Chrome{allocCancel: allocCancel, tabCancel: tabCancel}
	c.pageSurface = &pageSurface{d: &chromeDriver{tab: tabCtx, navTimeout: navTimeout}}
	return c, nil
}

// SaveState is a no-op: cookies persist in Options.UserDataDir.
func (c *Chrome) SaveState(ctx context.Context, path string) error {
	return ctx.Err()
}

func (c *Chrome) Close(ctx context.Context) error {
	_ = ctx
	c.tabCancel()
	c.allocCancel()
	return nil
}

type chromeDriver struct {
	tab        context.Context
	navTimeout time.Duration
}

// run executes actions on the tab, bounded by both ctx and the tab lifetime.
// Cancelling the derived context leaves the tab open.
func (d *chromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(d.tab)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		runCtx, cancelDL = context.WithDeadline(runCtx, dl)
		defer cancelDL()
	} else if timeout > 0 {
		var cancelTO context.CancelFunc
		runCtx, cancelTO = context.WithTimeout(runCtx, timeout)
		defer cancelTO()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return wrapCDP(err)
	}
	return nil
}

func (d *chromeDriver) evaluate(ctx context.Context, fn string, arg map[string]any, out any) error {
	expr, err := invocation(fn, arg)
	if err != nil {
		return err
	}
	var res json.RawMessage
	err = d.run(ctx, 0, chromedp.Evaluate(expr, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true)
	}))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func (d *chromeDriver) location(ctx context.Context) (string, error) {
	var loc string
	err := d.run(ctx, 0, chromedp.Location(&loc))
	return loc, err
}

func (d *chromeDriver) navigate(ctx context.Context, url string) error {
	return d.run(ctx, d.navTimeout, chromedp.Navigate(url))
}

func (d *chromeDriver) reload(ctx context.Context) error {
	return d.run(ctx, d.navTimeout, chromedp.Reload())
}

// invocation turns a JS function and its argument into a single expression,
// since Runtime.evaluate takes no arguments.
func invocation(fn string, arg map[string]any) (string, error) {
	if arg == nil {
		arg = map[string]any{}
	}
	data, err := json.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("marshal argument: %w", err)
	}
	return fmt.Sprintf("(%s)(%s)", fn, data), nil
}

func wrapCDP(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("cdp: %w", err)
}
