package resolve

import (
	"strings"

	"github.com/polzovatel/seckill-agent/internal/surface"
)

// Weights parameterise candidate scoring. They were tuned against one target
// surface; retune them in configuration for another.
type Weights struct {
	ExactConfidence float64 `mapstructure:"exact_confidence"`

	Button     float64 `mapstructure:"button"`
	Anchor     float64 `mapstructure:"anchor"`
	Input      float64 `mapstructure:"input"`
	RoleButton float64 `mapstructure:"role_button"`
	Generic    float64 `mapstructure:"generic"`

	PointerCursor float64 `mapstructure:"pointer_cursor"`
	ClickHandler  float64 `mapstructure:"click_handler"`
	ButtonClass   float64 `mapstructure:"button_class"`

	ExactLabel  float64 `mapstructure:"exact_label"`
	PrefixLabel float64 `mapstructure:"prefix_label"`

	PlausibleSize   float64 `mapstructure:"plausible_size"`
	ImplausibleSize float64 `mapstructure:"implausible_size"`
	// Position scales the bottom-right bias: settle and submit buttons sit in
	// the bottom-right action bar of the flow.
	Position float64 `mapstructure:"position"`
	Disabled float64 `mapstructure:"disabled"`
}

func DefaultWeights() Weights {
	return Weights{
		ExactConfidence: 100,
		Button:          50,
		Anchor:          40,
		Input:           45,
		RoleButton:      45,
		Generic:         0,
		PointerCursor:   30,
		ClickHandler:    35,
		ButtonClass:     20,
		ExactLabel:      40,
		PrefixLabel:     30,
		PlausibleSize:   25,
		ImplausibleSize: 30,
		Position:        20,
		Disabled:        40,
	}
}

var defaultViewport = surface.Box{Width: 1280, Height: 800}

// score applies the weighted scheme shared by the heuristic and structural tiers.
func (w Weights) score(el surface.Element, t Table, vp surface.Box) float64 {
	s := w.tagWeight(el)
	if el.PointerCursor {
		s += w.PointerCursor
	}
	if el.HasClickHandler {
		s += w.ClickHandler
	}
	if buttonClass(el.ClassName) {
		s += w.ButtonClass
	}
	s += w.labelBonus(normalizeLabel(el.Text), t.Keywords)

	switch {
	case t.Size.fits(el.Box.Width, el.Box.Height):
		s += w.PlausibleSize
	case implausible(el.Box, vp):
		s -= w.ImplausibleSize
	}

	if span := vp.Width + vp.Height; span > 0 {
		s += w.Position * clamp01((el.Box.Right()+el.Box.Bottom())/span)
	}
	if el.Disabled {
		s -= w.Disabled
	}
	if s < 0 {
		return 0
	}
	return s
}

func (w Weights) tagWeight(el surface.Element) float64 {
	switch strings.ToLower(el.Tag) {
	case "button":
		return w.Button
	case "a":
		return w.Anchor
	case "input":
		switch strings.ToLower(el.Type) {
		case "submit", "button", "checkbox":
			return w.Input
		}
	}
	switch strings.ToLower(el.Role) {
	case "button", "checkbox":
		return w.RoleButton
	}
	return w.Generic
}

func (w Weights) labelBonus(label string, keywords []string) float64 {
	best := 0.0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		switch {
		case label == kw:
			return w.ExactLabel
		case strings.HasPrefix(label, kw) && w.PrefixLabel > best:
			best = w.PrefixLabel
		}
	}
	return best
}

func implausible(b surface.Box, vp surface.Box) bool {
	if b.Width < 4 || b.Height < 4 {
		return true
	}
	return vp.Width > 0 && vp.Height > 0 && (b.Width > vp.Width*0.9 || b.Height > vp.Height*0.5)
}

func buttonClass(class string) bool {
	class = strings.ToLower(class)
	return strings.Contains(class, "btn") || strings.Contains(class, "button") ||
		strings.Contains(class, "clickable")
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
