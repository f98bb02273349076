package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/polzovatel/seckill-agent/internal/clock"
	"github.com/polzovatel/seckill-agent/internal/surface"
	"github.com/polzovatel/seckill-agent/internal/surface/surfacetest"
)

func TestReadCapturesAllFields(t *testing.T) {
	fs := surfacetest.New("https://cart.example.com/cart.htm")
	fs.SetText("  全选  结算(2)  ")
	fs.Add(surfacetest.Node{Tag: "button", Text: "结算", Box: surface.Box{Width: 80, Height: 30}})
	fs.Add(surfacetest.Node{Tag: "div", Text: "decor"})
	fc := clock.NewFake(time.Unix(1700000000, 0))

	sig := NewReader(fs, WithClock(fc)).Read(context.Background())

	assert.Equal(t, "https://cart.example.com/cart.htm", sig.Location)
	assert.Equal(t, "全选  结算(2)", sig.Text)
	assert.Equal(t, 1, sig.Interactive)
	assert.Equal(t, fc.Now(), sig.CapturedAt)
	assert.False(t, sig.Empty())
}

func TestReadTruncatesTextByRunes(t *testing.T) {
	fs := surfacetest.New("https://x")
	fs.SetText("提交订单提交订单")

	sig := NewReader(fs, WithTextSample(4)).Read(context.Background())
	assert.Equal(t, "提交订单", sig.Text)
}

func TestReadFailsSoft(t *testing.T) {
	fs := surfacetest.New("https://x")
	fs.SetText("something")
	fs.ReadErr = errors.New("execution context was destroyed")

	sig := NewReader(fs).Read(context.Background())
	assert.True(t, sig.Empty())
	assert.False(t, sig.CapturedAt.IsZero())
}

func TestReadCancelledContextYieldsEmpty(t *testing.T) {
	fs := surfacetest.New("https://x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sig := NewReader(fs).Read(ctx)
	assert.True(t, sig.Empty())
}

func TestWithDeadline(t *testing.T) {
	ctx, cancel := WithDeadline(context.Background(), 0)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok)

	ctx2, cancel2 := WithDeadline(context.Background(), time.Second)
	defer cancel2()
	_, ok = ctx2.Deadline()
	assert.True(t, ok)
}
