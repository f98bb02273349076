package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polzovatel/seckill-agent/internal/page"
	"github.com/polzovatel/seckill-agent/internal/resolve"
)

func TestIntentMappingIsTotal(t *testing.T) {
	want := map[page.State]resolve.Intent{
		page.SelectionStage:   resolve.SelectAll,
		page.TransactionStage: resolve.AdvanceToReview,
		page.ReviewStage:      resolve.SubmitOrder,
	}
	for state, intent := range want {
		got, ok := IntentFor(state)
		assert.True(t, ok, state.String())
		assert.Equal(t, intent, got, state.String())
	}
	for _, state := range []page.State{page.Unknown, page.ErrorStage, page.PaymentStage} {
		_, ok := IntentFor(state)
		assert.False(t, ok, state.String())
	}
}

func TestPlanRecoveries(t *testing.T) {
	assert.Equal(t, RecoverNavigate, Plan(page.Unknown).Recover)
	assert.Equal(t, RecoverReload, Plan(page.ErrorStage).Recover)
	assert.Equal(t, Step{}, Plan(page.PaymentStage))
	assert.Equal(t, "navigate", RecoverNavigate.String())
}
