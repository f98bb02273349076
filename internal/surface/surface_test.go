package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoxEmpty(t *testing.T) {
	assert.True(t, Box{}.Empty())
	assert.True(t, Box{Width: 10}.Empty())
	assert.False(t, Box{Width: 10, Height: 2}.Empty())
	assert.Equal(t, 110.0, Box{X: 100, Width: 10}.Right())
}

func TestElementAffordances(t *testing.T) {
	assert.True(t, Element{Tag: "BUTTON"}.NativeInteractive())
	assert.True(t, Element{Tag: "div", Role: "button"}.NativeInteractive())
	assert.False(t, Element{Tag: "div"}.NativeInteractive())
	assert.True(t, Element{Tag: "span", PointerCursor: true}.InteractiveLooking())
	assert.True(t, Element{Tag: "div", HasClickHandler: true}.InteractiveLooking())
	assert.False(t, Element{Tag: "div"}.InteractiveLooking())
}
