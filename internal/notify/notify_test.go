package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/seckill-agent/internal/agent"
	"github.com/polzovatel/seckill-agent/internal/clock"
	"github.com/polzovatel/seckill-agent/internal/page"
)

func sampleOutcome() agent.Outcome {
	return agent.Outcome{
		RunID:          "run-1",
		Success:        true,
		Phase:          agent.Succeeded.String(),
		ElapsedSeconds: 1.25,
		FinalLocation:  "https://cashier.example.com/standard.htm",
		Cycles:         3,
		LastState:      page.PaymentStage.String(),
		Attempts: []agent.ActionAttempt{
			{Cycle: 1, Intent: "select_all", Label: "全选", Score: 100, Tier: "exact", Method: "invoke", Dispatched: true},
		},
	}
}

func TestWebhookPostsOutcome(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, zerolog.Nop()).Notify(context.Background(), sampleOutcome())

	require.NoError(t, err)
	assert.Equal(t, "seckill.finished", got.Event)
	assert.Equal(t, "run-1", got.Outcome.RunID)
	assert.True(t, got.Outcome.Success)
	assert.Len(t, got.Outcome.Attempts, 1)
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	fc := clock.NewFake(time.Now())

	err := NewWebhook(srv.URL, zerolog.Nop(), WithClock(fc)).Notify(context.Background(), sampleOutcome())

	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, fc.Sleeps())
}

func TestWebhookDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, zerolog.Nop(), WithClock(clock.NewFake(time.Now()))).Notify(context.Background(), sampleOutcome())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "bad token")
	assert.EqualValues(t, 1, calls.Load())
}

func TestWebhookGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	fc := clock.NewFake(time.Now())

	err := NewWebhook(srv.URL, zerolog.Nop(), WithClock(fc)).Notify(context.Background(), sampleOutcome())

	require.ErrorContains(t, err, "max retries exceeded")
	assert.Contains(t, err.Error(), "429")
	assert.EqualValues(t, maxRetries+1, calls.Load())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}, fc.Sleeps())
}

func TestWebhookStopsWhenCancelled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fc := clock.NewFake(time.Now())
	fc.OnSleep(func(time.Time) { cancel() })

	err := NewWebhook(srv.URL, zerolog.Nop(), WithClock(fc)).Notify(ctx, sampleOutcome())

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, err.Error(), "max retries exceeded")
	assert.EqualValues(t, 1, calls.Load())
}

func TestConsoleSummary(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	require.NoError(t, NewConsole(&buf).Notify(context.Background(), sampleOutcome()))

	out := buf.String()
	assert.Contains(t, out, "reached payment in 1.250s")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "select_all")

	buf.Reset()
	failed := sampleOutcome()
	failed.Success = false
	failed.Error = "session unusable: reload: target closed"
	require.NoError(t, NewConsole(&buf).Notify(context.Background(), failed))
	assert.Contains(t, buf.String(), "run failed after 3 cycles")
	assert.Contains(t, buf.String(), "target closed")
}

type failing struct{ err error }

func (f failing) Notify(context.Context, agent.Outcome) error { return f.err }

func TestMultiJoinsErrors(t *testing.T) {
	a, b := errors.New("a"), errors.New("b")
	err := Multi{failing{a}, failing{nil}, failing{b}}.Notify(context.Background(), sampleOutcome())
	assert.ErrorIs(t, err, a)
	assert.ErrorIs(t, err, b)
}

func TestNewFromConfig(t *testing.T) {
	n, err := New(Config{}, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = New(Config{Console: true, WebhookURL: "https://hooks.example.com/x"}, &bytes.Buffer{}, zerolog.Nop())
	require.NoError(t, err)
	require.IsType(t, Multi{}, n)
	assert.Len(t, n.(Multi), 2)

	_, err = New(Config{WebhookURL: "ftp://example.com"}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestEventLogWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLog(&buf)
	out := sampleOutcome()

	el.Observe(agent.Event{RunID: "run-1", Kind: agent.EventStateClassified, Cycle: 1, Location: "https://cart.example.com/cart.htm", State: page.SelectionStage})
	el.Observe(agent.Event{RunID: "run-1", Kind: agent.EventRecovery, Recovery: agent.RecoverReload, Err: errors.New("target closed")})
	el.Observe(agent.Event{RunID: "run-1", Kind: agent.EventTerminal, Phase: agent.Succeeded, Outcome: &out})
	require.NoError(t, el.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	var first, second, last map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &last))
	assert.Equal(t, "selection", first["state"])
	assert.Equal(t, "state_classified", first["kind"])
	assert.Equal(t, "warn", second["level"])
	assert.Equal(t, "reload", second["recovery"])
	assert.Equal(t, "target closed", second["error"])
	assert.Equal(t, true, last["success"])
	assert.Equal(t, "succeeded", last["phase"])
}
