package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polzovatel/seckill-agent/internal/surface"
)

func TestTagWeight(t *testing.T) {
	w := DefaultWeights()
	assert.Equal(t, w.Button, w.tagWeight(surface.Element{Tag: "BUTTON"}))
	assert.Equal(t, w.Anchor, w.tagWeight(surface.Element{Tag: "a"}))
	assert.Equal(t, w.Input, w.tagWeight(surface.Element{Tag: "input", Type: "checkbox"}))
	assert.Equal(t, w.Generic, w.tagWeight(surface.Element{Tag: "input", Type: "text"}))
	assert.Equal(t, w.RoleButton, w.tagWeight(surface.Element{Tag: "div", Role: "button"}))
	assert.Equal(t, w.Generic, w.tagWeight(surface.Element{Tag: "div"}))
}

func TestLabelBonus(t *testing.T) {
	w := DefaultWeights()
	kws := []string{"结算", "Checkout"}
	assert.Equal(t, w.ExactLabel, w.labelBonus(normalizeLabel("  结算 "), kws))
	assert.Equal(t, w.ExactLabel, w.labelBonus(normalizeLabel("CHECKOUT"), kws))
	assert.Equal(t, w.PrefixLabel, w.labelBonus(normalizeLabel("结算(2)"), kws))
	assert.Zero(t, w.labelBonus(normalizeLabel("去结算"), kws))
}

func TestScoreNeverNegative(t *testing.T) {
	w := DefaultWeights()
	el := surface.Element{Tag: "div", Disabled: true, Box: surface.Box{Width: 1, Height: 1}}
	assert.Zero(t, w.score(el, DefaultTables()[SubmitOrder], defaultViewport))
}

func TestScorePrefersBottomRight(t *testing.T) {
	w := DefaultWeights()
	table := DefaultTables()[SubmitOrder]
	topLeft := surface.Element{Tag: "button", Text: "提交订单", Box: surface.Box{X: 0, Y: 0, Width: 100, Height: 40}}
	bottomRight := topLeft
	bottomRight.Box.X, bottomRight.Box.Y = 1100, 740
	assert.Greater(t, w.score(bottomRight, table, defaultViewport), w.score(topLeft, table, defaultViewport))
}

func TestImplausibleFootprint(t *testing.T) {
	vp := defaultViewport
	assert.True(t, implausible(surface.Box{Width: 2, Height: 30}, vp))
	assert.True(t, implausible(surface.Box{Width: 1200, Height: 30}, vp))
	assert.False(t, implausible(surface.Box{Width: 100, Height: 30}, vp))
}
