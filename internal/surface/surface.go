// Package surface defines the rendering surface the core observes and acts upon.
// Implementations live in internal/browser; tests use surfacetest.
package surface

import (
	"context"
	"errors"
	"strings"
)

// ErrStaleHandle is returned when a handle no longer refers to a connected node.
var ErrStaleHandle = errors.New("stale element handle")

// Handle is an opaque reference to a node on the surface. Handles are only
// valid for the resolution that produced them: the surface replaces nodes on
// re-render, so callers must never keep one across loop cycles.
type Handle string

// Box is a geometric footprint in CSS pixels relative to the viewport.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b Box) Right() float64  { return b.X + b.Width }
func (b Box) Bottom() float64 { return b.Y + b.Height }

// Empty reports a zero footprint (not rendered or hidden).
func (b Box) Empty() bool { return b.Width <= 0 || b.Height <= 0 }

// Element describes one node returned by a query.
type Element struct {
	Handle          Handle `json:"handle"`
	Tag             string `json:"tag"`
	Role            string `json:"role"`
	Type            string `json:"type"`
	Text            string `json:"text"`
	ClassName       string `json:"className"`
	Box             Box    `json:"box"`
	Depth           int    `json:"depth"`
	Order           int    `json:"order"`
	PointerCursor   bool   `json:"pointer"`
	HasClickHandler bool   `json:"onclick"`
	Disabled        bool   `json:"disabled"`
}

// NativeInteractive reports tags the browser activates without scripting.
func (e Element) NativeInteractive() bool {
	switch strings.ToLower(e.Tag) {
	case "button", "a", "input", "select", "label", "summary":
		return true
	}
	return strings.EqualFold(e.Role, "button") || strings.EqualFold(e.Role, "checkbox") ||
		strings.EqualFold(e.Role, "link")
}

// InteractiveLooking reports whether the element advertises any click affordance.
func (e Element) InteractiveLooking() bool {
	return e.NativeInteractive() || e.PointerCursor || e.HasClickHandler
}

// KeywordQuery selects elements by their visible text.
type KeywordQuery struct {
	Keywords []string
	// MaxTextLength drops nodes whose text is longer (0 = unlimited).
	MaxTextLength int
	// Containers switches from control-like nodes to block containers.
	Containers bool
}

// Surface is the remote page capability consumed by the core. Every call is a
// blocking round trip bounded by ctx.
type Surface interface {
	CurrentLocation(ctx context.Context) (string, error)
	TextSample(ctx context.Context, maxLength int) (string, error)
	InteractiveCount(ctx context.Context) (int, error)
	Viewport(ctx context.Context) (Box, error)

	QueryAll(ctx context.Context, marker string) ([]Element, error)
	QueryByKeywords(ctx context.Context, q KeywordQuery) ([]Element, error)
	// Descendants returns interactive-looking nodes inside the subtree of h.
	Descendants(ctx context.Context, h Handle) ([]Element, error)

	Invoke(ctx context.Context, h Handle) error
	DispatchPointerEvent(ctx context.Context, h Handle) error
	// InvokeAncestor invokes the nearest interactive ancestor of h.
	InvokeAncestor(ctx context.Context, h Handle) error

	Navigate(ctx context.Context, location string) error
	Reload(ctx context.Context) error
}
