// Package surfacetest provides an in-memory surface.Surface with call counters.
package surfacetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/polzovatel/seckill-agent/internal/surface"
)

// Method names recorded by Calls.
const (
	MethodLocation    = "CurrentLocation"
	MethodText        = "TextSample"
	MethodCount       = "InteractiveCount"
	MethodViewport    = "Viewport"
	MethodQueryAll    = "QueryAll"
	MethodKeywords    = "QueryByKeywords"
	MethodDescendants = "Descendants"
	MethodInvoke      = "Invoke"
	MethodPointer     = "DispatchPointerEvent"
	MethodAncestor    = "InvokeAncestor"
	MethodNavigate    = "Navigate"
	MethodReload      = "Reload"
)

// Node is a fake DOM node.
type Node struct {
	ID        string
	Parent    string
	Tag       string
	Role      string
	Type      string
	Text      string
	ClassName string
	Box       surface.Box
	Pointer   bool
	OnClick   bool
	Disabled  bool
	// Container makes the node eligible for KeywordQuery.Containers lookups
	// and excludes it from control lookups.
	Container bool
	// Markers lists the QueryAll markers this node matches.
	Markers []string

	FailInvoke  bool
	FailPointer bool
}

// ActionHook observes a dispatched action. method is one of the Method* names.
type ActionHook func(s *Surface, n Node, method string)

// Surface is a single-page fake. All methods are safe for concurrent use.
type Surface struct {
	mu       sync.Mutex
	location string
	text     string
	viewport surface.Box
	nodes    []*Node
	calls    map[string]int
	navs     []string
	onAction ActionHook

	// Errors injected per operation.
	ReadErr     error
	NavigateErr error
	ReloadErr   error
}

var _ surface.Surface = (*Surface)(nil)

func New(location string) *Surface {
	return &Surface{
		location: location,
		viewport: surface.Box{Width: 1280, Height: 800},
		calls:    map[string]int{},
	}
}

// Add appends n in document order and returns its handle.
func (s *Surface) Add(n Node) surface.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = fmt.Sprintf("n%d", len(s.nodes)+1)
	}
	cp := n
	s.nodes = append(s.nodes, &cp)
	return surface.Handle(cp.ID)
}

// Replace drops every node, simulating a full re-render.
func (s *Surface) Replace(nodes ...Node) {
	s.mu.Lock()
	s.nodes = nil
	s.mu.Unlock()
	for _, n := range nodes {
		s.Add(n)
	}
}

// Remove detaches a node so existing handles to it go stale.
func (s *Surface) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.nodes {
		if n.ID == id {
			s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
			return
		}
	}
}

func (s *Surface) SetLocation(loc string) {
	s.mu.Lock()
	s.location = loc
	s.mu.Unlock()
}

func (s *Surface) SetText(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
}

// OnAction installs a hook run after every successful invoke strategy.
func (s *Surface) OnAction(h ActionHook) {
	s.mu.Lock()
	s.onAction = h
	s.mu.Unlock()
}

// Calls returns how often method was called.
func (s *Surface) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Navigations returns every location passed to Navigate.
func (s *Surface) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navs...)
}

func (s *Surface) record(method string) {
	s.calls[method]++
}

func (s *Surface) CurrentLocation(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(MethodLocation)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.ReadErr != nil {
		return "", s.ReadErr
	}
	return s.location, nil
}

func (s *Surface) TextSample(ctx context.Context, maxLength int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(MethodText)
	if s.ReadErr != nil {
		return "", s.ReadErr
	}
	text := s.text
	if maxLength > 0 {
		if r := []rune(text); len(r) > maxLength {
			text = string(r[:maxLength])
		}
	}
	return text, nil
}

func (s *Surface) InteractiveCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(MethodCount)
	if s.ReadErr != nil {
		return 0, s.ReadErr
	}
	count := 0
	for _, n := range s.nodes {
		if s.element(n).InteractiveLooking() {
			count++
		}
	}
	return count, nil
}

func (s *Surface) Viewport(ctx context.Context) (surface.Box, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(MethodViewport)
	return s.viewport, nil
}

func (s *Surface) QueryAll(ctx context.Context, marker string) ([]surface.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(MethodQueryAll)
	var out []surface.Element
	for _, n := range s.nodes {
		for _, m := range n.Markers {
			if m == marker {
				out = append(out, s.element(n))
				break
			}
		}
	}
	return out, nil
}

func (s *Surface) QueryByKeywords(ctx context.Context, q surface.KeywordQuery) ([]surface.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(MethodKeywords)
	var out []surface.Element
	for _, n := range s.nodes {
		if n.Container != q.Containers {
			continue
		}
		text := strings.TrimSpace(s.textOf(n))
		if text == "" || (q.MaxTextLength > 0 && len([]rune(text)) > q.MaxTextLength) {
			continue
		}
		lower := strings.ToLower(text)
		for _, kw := range q.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				out = append(out, s.element(n))
				break
			}
		}
	}
	return out, nil
}

func (s *Surface) Descendants(ctx context.Context, h surface.Handle) ([]surface.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(MethodDescendants)
	if s.find(string(h)) == nil {
		return nil, surface.ErrStaleHandle
	}
	var out []surface.Element
	for _, n := range s.nodes {
		if n.ID == string(h) || !s.isDescendant(n, string(h)) {
			continue
		}
		if el := s.element(n); el.InteractiveLooking() {
			out = append(out, el)
		}
	}
	return out, nil
}

func (s *Surface) Invoke(ctx context.Context, h surface.Handle) error {
	return s.act(MethodInvoke, h, func(n *Node) (*Node, error) {
		if n.FailInvoke {
			return nil, fmt.Errorf("invoke %s: element not clickable", n.ID)
		}
		return n, nil
	})
}

func (s *Surface) DispatchPointerEvent(ctx context.Context, h surface.Handle) error {
	return s.act(MethodPointer, h, func(n *Node) (*Node, error) {
		if n.FailPointer {
			return nil, fmt.Errorf("pointer %s: event rejected", n.ID)
		}
		return n, nil
	})
}

func (s *Surface) InvokeAncestor(ctx context.Context, h surface.Handle) error {
	return s.act(MethodAncestor, h, func(n *Node) (*Node, error) {
		for p := s.find(n.Parent); p != nil; p = s.find(p.Parent) {
			if s.element(p).InteractiveLooking() {
				if p.FailInvoke {
					return nil, fmt.Errorf("invoke ancestor %s: element not clickable", p.ID)
				}
				return p, nil
			}
		}
		return nil, fmt.Errorf("invoke ancestor %s: no interactive ancestor", n.ID)
	})
}

func (s *Surface) act(method string, h surface.Handle, pick func(*Node) (*Node, error)) error {
	s.mu.Lock()
	s.record(method)
	n := s.find(string(h))
	if n == nil {
		s.mu.Unlock()
		return fmt.Errorf("%s %s: %w", method, h, surface.ErrStaleHandle)
	}
	target, err := pick(n)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	hook, snapshot := s.onAction, *target
	s.mu.Unlock()
	if hook != nil {
		hook(s, snapshot, method)
	}
	return nil
}

func (s *Surface) Navigate(ctx context.Context, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(MethodNavigate)
	s.navs = append(s.navs, location)
	if s.NavigateErr != nil {
		return s.NavigateErr
	}
	s.location = location
	return nil
}

func (s *Surface) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(MethodReload)
	return s.ReloadErr
}

func (s *Surface) find(id string) *Node {
	if id == "" {
		return nil
	}
	for _, n := range s.nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func (s *Surface) isDescendant(n *Node, ancestor string) bool {
	for p := s.find(n.Parent); p != nil; p = s.find(p.Parent) {
		if p.ID == ancestor {
			return true
		}
	}
	return false
}

func (s *Surface) depth(n *Node) int {
	d := 0
	for p := s.find(n.Parent); p != nil; p = s.find(p.Parent) {
		d++
	}
	return d
}

// textOf mirrors textContent: own text followed by descendant text.
func (s *Surface) textOf(n *Node) string {
	parts := []string{n.Text}
	for _, c := range s.nodes {
		if c.Parent == n.ID {
			parts = append(parts, s.textOf(c))
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (s *Surface) element(n *Node) surface.Element {
	order := 0
	for i, c := range s.nodes {
		if c == n {
			order = i
			break
		}
	}
	return surface.Element{
		Handle:          surface.Handle(n.ID),
		Tag:             n.Tag,
		Role:            n.Role,
		Type:            n.Type,
		Text:            s.textOf(n),
		ClassName:       n.ClassName,
		Box:             n.Box,
		Depth:           s.depth(n),
		Order:           order,
		PointerCursor:   n.Pointer,
		HasClickHandler: n.OnClick,
		Disabled:        n.Disabled,
	}
}
