package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/polzovatel/seckill-agent/internal/surface"
)

const (
	maxKeywordMatches = 50
	maxDescendants    = 100
)

// driver is the per-engine transport underneath pageSurface.
type driver interface {
	// evaluate calls the JS function fn with arg and decodes its result into out.
	evaluate(ctx context.Context, fn string, arg map[string]any, out any) error
	location(ctx context.Context) (string, error)
	navigate(ctx context.Context, url string) error
	reload(ctx context.Context) error
}

// pageSurface implements surface.Surface with in-page scripts so both engines
// resolve and invoke elements identically.
type pageSurface struct {
	d driver
}

var _ surface.Surface = (*pageSurface)(nil)

func (p *pageSurface) CurrentLocation(ctx context.Context) (string, error) {
	return p.d.location(ctx)
}

func (p *pageSurface) TextSample(ctx context.Context, maxLength int) (string, error) {
	var text string
	err := p.d.evaluate(ctx, textSampleJS, map[string]any{"max": maxLength}, &text)
	return text, err
}

func (p *pageSurface) InteractiveCount(ctx context.Context) (int, error) {
	var n int
	err := p.d.evaluate(ctx, interactiveCountJS, nil, &n)
	return n, err
}

func (p *pageSurface) Viewport(ctx context.Context) (surface.Box, error) {
	var b surface.Box
	err := p.d.evaluate(ctx, viewportJS, nil, &b)
	return b, err
}

func (p *pageSurface) QueryAll(ctx context.Context, marker string) ([]surface.Element, error) {
	var out []surface.Element
	if err := p.d.evaluate(ctx, queryAllJS, map[string]any{"selector": marker}, &out); err != nil {
		return nil, fmt.Errorf("query %q: %w", marker, err)
	}
	return out, nil
}

func (p *pageSurface) QueryByKeywords(ctx context.Context, q surface.KeywordQuery) ([]surface.Element, error) {
	if len(q.Keywords) == 0 {
		return nil, nil
	}
	selector := controlsSelector
	if q.Containers {
		selector = containersSelector
	}
	var out []surface.Element
	err := p.d.evaluate(ctx, keywordsJS, map[string]any{
		"keywords": q.Keywords,
		"max":      q.MaxTextLength,
		"selector": selector,
		"limit":    maxKeywordMatches,
	}, &out)
	return out, err
}

type descendantsResult struct {
	Stale    bool              `json:"stale"`
	Elements []surface.Element `json:"elements"`
}

func (p *pageSurface) Descendants(ctx context.Context, h surface.Handle) ([]surface.Element, error) {
	var res descendantsResult
	if err := p.d.evaluate(ctx, descendantsJS, map[string]any{"handle": string(h), "limit": maxDescendants}, &res); err != nil {
		return nil, err
	}
	if res.Stale {
		return nil, fmt.Errorf("descendants %s: %w", h, surface.ErrStaleHandle)
	}
	return res.Elements, nil
}

type invokeResult struct {
	OK    bool   `json:"ok"`
	Stale bool   `json:"stale"`
	Error string `json:"error"`
}

func (p *pageSurface) Invoke(ctx context.Context, h surface.Handle) error {
	return p.invoke(ctx, h, "click")
}

func (p *pageSurface) DispatchPointerEvent(ctx context.Context, h surface.Handle) error {
	return p.invoke(ctx, h, "pointer")
}

func (p *pageSurface) InvokeAncestor(ctx context.Context, h surface.Handle) error {
	return p.invoke(ctx, h, "ancestor")
}

func (p *pageSurface) invoke(ctx context.Context, h surface.Handle, mode string) error {
	var res invokeResult
	if err := p.d.evaluate(ctx, invokeJS, map[string]any{"handle": string(h), "mode": mode}, &res); err != nil {
		return err
	}
	switch {
	case res.Stale:
		return fmt.Errorf("%s %s: %w", mode, h, surface.ErrStaleHandle)
	case !res.OK:
		msg := res.Error
		if msg == "" {
			msg = "rejected"
		}
		return fmt.Errorf("%s %s: %s", mode, h, msg)
	}
	return nil
}

func (p *pageSurface) Navigate(ctx context.Context, location string) error {
	return p.d.navigate(ctx, location)
}

func (p *pageSurface) Reload(ctx context.Context) error {
	return p.d.reload(ctx)
}

// decode converts a loosely typed evaluation result into out.
func decode(val any, out any) error {
	if out == nil {
		return nil
	}
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
