package browser

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/seckill-agent/internal/surface"
)

type evalCall struct {
	fn  string
	arg map[string]any
}

// scriptedDriver answers evaluate calls with canned values, decoded the same
// way the Playwright driver decodes its results.
type scriptedDriver struct {
	calls   []evalCall
	results map[string]any
	err     error
	loc     string
	navs    []string
	reloads int
}

func (d *scriptedDriver) evaluate(ctx context.Context, fn string, arg map[string]any, out any) error {
	d.calls = append(d.calls, evalCall{fn, arg})
	if d.err != nil {
		return d.err
	}
	return decode(d.results[fn], out)
}

func (d *scriptedDriver) location(context.Context) (string, error) { return d.loc, nil }

func (d *scriptedDriver) navigate(_ context.Context, url string) error {
	d.navs = append(d.navs, url)
	d.loc = url
	return nil
}

func (d *scriptedDriver) reload(context.Context) error {
	d.reloads++
	return nil
}

func TestPageSurfaceQueries(t *testing.T) {
	d := &scriptedDriver{
		loc: "https://cart.example.com/cart.htm",
		results: map[string]any{
			textSampleJS:       "全选 结算",
			interactiveCountJS: 42,
			viewportJS:         map[string]any{"x": 0, "y": 0, "width": 1280, "height": 800},
			queryAllJS: []any{map[string]any{
				"handle": "h7", "tag": "button", "text": "结算", "className": "btn-settle",
				"box":   map[string]any{"x": 1100, "y": 720, "width": 120, "height": 40},
				"depth": 9, "order": 3, "pointer": true, "onclick": false, "disabled": false,
			}},
		},
	}
	p := &pageSurface{d: d}
	ctx := context.Background()

	loc, err := p.CurrentLocation(ctx)
	require.NoError(t, err)
	assert.Equal(t, d.loc, loc)

	text, err := p.TextSample(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "全选 结算", text)
	assert.Equal(t, 100, d.calls[0].arg["max"])

	n, err := p.InteractiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	vp, err := p.Viewport(ctx)
	require.NoError(t, err)
	assert.Equal(t, surface.Box{Width: 1280, Height: 800}, vp)

	els, err := p.QueryAll(ctx, `button[data-spm*="settlement"]`)
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, surface.Handle("h7"), els[0].Handle)
	assert.Equal(t, "btn-settle", els[0].ClassName)
	assert.Equal(t, 1220.0, els[0].Box.Right())
	assert.True(t, els[0].PointerCursor)
	assert.Equal(t, 3, els[0].Order)
}

func TestPageSurfaceKeywordQuery(t *testing.T) {
	d := &scriptedDriver{results: map[string]any{keywordsJS: []any{}}}
	p := &pageSurface{d: d}

	els, err := p.QueryByKeywords(context.Background(), surface.KeywordQuery{})
	require.NoError(t, err)
	assert.Empty(t, els)
	assert.Empty(t, d.calls, "no keywords, no round trip")

	_, err = p.QueryByKeywords(context.Background(), surface.KeywordQuery{Keywords: []string{"结算"}, MaxTextLength: 50})
	require.NoError(t, err)
	_, err = p.QueryByKeywords(context.Background(), surface.KeywordQuery{Keywords: []string{"结算"}, Containers: true})
	require.NoError(t, err)
	require.Len(t, d.calls, 2)
	assert.Equal(t, controlsSelector, d.calls[0].arg["selector"])
	assert.Equal(t, 50, d.calls[0].arg["max"])
	assert.Equal(t, containersSelector, d.calls[1].arg["selector"])
}

func TestPageSurfaceStaleHandles(t *testing.T) {
	d := &scriptedDriver{results: map[string]any{
		invokeJS:      map[string]any{"ok": false, "stale": true},
		descendantsJS: map[string]any{"stale": true, "elements": []any{}},
	}}
	p := &pageSurface{d: d}

	err := p.Invoke(context.Background(), "h1")
	assert.ErrorIs(t, err, surface.ErrStaleHandle)
	err = p.DispatchPointerEvent(context.Background(), "h1")
	assert.ErrorIs(t, err, surface.ErrStaleHandle)
	_, err = p.Descendants(context.Background(), "h1")
	assert.ErrorIs(t, err, surface.ErrStaleHandle)

	modes := []string{}
	for _, c := range d.calls {
		if c.fn == invokeJS {
			modes = append(modes, c.arg["mode"].(string))
		}
	}
	assert.Equal(t, []string{"click", "pointer"}, modes)
}

func TestPageSurfaceInvokeOutcomes(t *testing.T) {
	d := &scriptedDriver{results: map[string]any{invokeJS: map[string]any{"ok": true}}}
	p := &pageSurface{d: d}
	require.NoError(t, p.Invoke(context.Background(), "h2"))

	d.results[invokeJS] = map[string]any{"ok": false, "error": "no interactive ancestor"}
	err := p.InvokeAncestor(context.Background(), "h2")
	require.Error(t, err)
	assert.NotErrorIs(t, err, surface.ErrStaleHandle)
	assert.Contains(t, err.Error(), "no interactive ancestor")

	d.err = errors.New("execution context was destroyed")
	err = p.Invoke(context.Background(), "h2")
	assert.ErrorContains(t, err, "execution context was destroyed")
}

func TestPageSurfaceNavigation(t *testing.T) {
	d := &scriptedDriver{}
	p := &pageSurface{d: d}
	require.NoError(t, p.Navigate(context.Background(), "https://cart.example.com/cart.htm"))
	require.NoError(t, p.Reload(context.Background()))
	assert.Equal(t, []string{"https://cart.example.com/cart.htm"}, d.navs)
	assert.Equal(t, 1, d.reloads)
}

func TestInvocationEmbedsArgument(t *testing.T) {
	expr, err := invocation(`(arg) => arg.selector`, map[string]any{"selector": `a[data-spm*="x"]`})
	require.NoError(t, err)
	assert.Equal(t, `((arg) => arg.selector)({"selector":"a[data-spm*=\"x\"]"})`, expr)

	expr, err = invocation(viewportJS, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(expr, "({})"))
}

func TestScriptsShareRegistry(t *testing.T) {
	for _, js := range []string{interactiveCountJS, queryAllJS, keywordsJS, descendantsJS, invokeJS} {
		assert.Contains(t, js, "window.__seckillRegistry")
	}
}

func TestQueriesReportDocumentPosition(t *testing.T) {
	for _, js := range []string{queryAllJS, keywordsJS, descendantsJS} {
		assert.Contains(t, js, "reg.positions()")
		assert.Contains(t, js, "reg.describe(el, pos(el))")
	}
	assert.Contains(t, registryJS, `document.getElementsByTagName("*")`)
}

func TestTimeoutMillis(t *testing.T) {
	assert.Equal(t, 2000.0, timeoutMillis(context.Background(), 2*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	got := timeoutMillis(ctx, 30*time.Second)
	assert.LessOrEqual(t, got, 500.0)
	assert.Greater(t, got, 0.0)
}

func TestCallRespectsContext(t *testing.T) {
	v, err := call(context.Background(), func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = call(ctx, func() (int, error) { return 0, nil })
	assert.ErrorIs(t, err, context.Canceled)

	release := make(chan struct{})
	defer close(release)
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = call(ctx, func() (int, error) {
		<-release
		return 0, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("SECKILL_TEST_BOOL", "yes")
	assert.True(t, parseBoolEnv("SECKILL_TEST_BOOL", false))
	t.Setenv("SECKILL_TEST_BOOL", "off")
	assert.False(t, parseBoolEnv("SECKILL_TEST_BOOL", true))
	t.Setenv("SECKILL_TEST_BOOL", "maybe")
	assert.True(t, parseBoolEnv("SECKILL_TEST_BOOL", true))
	assert.False(t, parseBoolEnv("SECKILL_TEST_UNSET", false))
}

func TestExecOptions(t *testing.T) {
	base := len(execOptions(Options{Headless: true}))
	assert.Equal(t, base+1, len(execOptions(Options{Headless: false})))
	assert.Equal(t, base+1, len(execOptions(Options{Headless: true, UserDataDir: "/tmp/profile"})))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "webkit"}, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown browser driver")
}
