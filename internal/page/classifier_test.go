package page

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polzovatel/seckill-agent/internal/snapshot"
)

func TestClassifyLocations(t *testing.T) {
	c := NewClassifier(DefaultMarkers())
	cases := []struct {
		url  string
		want State
	}{
		{"https://cart.taobao.com/cart.htm", SelectionStage},
		{"https://cart.taobao.com/settle.htm", TransactionStage},
		{"https://buy.taobao.com/auction/confirm_order.htm", ReviewStage},
		{"https://cashierstm.alipay.com/standard/lightpay", PaymentStage},
		{"HTTPS://CART.TAOBAO.COM/CART.HTM", SelectionStage},
		{"https://www.taobao.com/", Unknown},
	}
	for _, tc := range cases {
		t.Run(tc.url, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(snapshot.Signal{Location: tc.url}))
		})
	}
}

func TestClassifyLocationWinsOverText(t *testing.T) {
	c := NewClassifier(DefaultMarkers())
	sig := snapshot.Signal{
		Location: "https://cashier.example.com/pay",
		Text:     "请确认 提交订单",
	}
	assert.Equal(t, PaymentStage, c.Classify(sig))

	sig = snapshot.Signal{Location: "https://cart.example.com/cart", Text: "收银台"}
	assert.Equal(t, SelectionStage, c.Classify(sig))
}

func TestClassifyTextFallbacks(t *testing.T) {
	c := NewClassifier(DefaultMarkers())
	assert.Equal(t, PaymentStage, c.Classify(snapshot.Signal{Location: "https://x/y", Text: "收银台 提交订单"}))
	assert.Equal(t, ReviewStage, c.Classify(snapshot.Signal{Location: "https://x/y", Text: "请核对 提交订单"}))
	assert.Equal(t, ErrorStage, c.Classify(snapshot.Signal{Location: "https://x/y", Text: "网络异常，请稍后再试"}))
	assert.Equal(t, Unknown, c.Classify(snapshot.Signal{Location: "https://x/y", Text: "欢迎"}))
}

func TestClassifyIsTotal(t *testing.T) {
	c := NewClassifier(DefaultMarkers())
	assert.Equal(t, Unknown, c.Classify(snapshot.Signal{}))

	empty := NewClassifier(Markers{})
	assert.Equal(t, Unknown, empty.Classify(snapshot.Signal{Location: "https://cart", Text: "提交订单"}))

	blank := NewClassifier(Markers{SelectionLocation: []string{"", "  "}})
	assert.Equal(t, Unknown, blank.Classify(snapshot.Signal{Location: "anything"}))
}

func TestStateNames(t *testing.T) {
	for s := Unknown; s <= ErrorStage; s++ {
		parsed, ok := ParseState(s.String())
		assert.True(t, ok)
		assert.Equal(t, s, parsed)
	}
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, PaymentStage.Terminal())
	assert.False(t, ReviewStage.Terminal())
}
