package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/polzovatel/seckill-agent/internal/agent"
	"github.com/polzovatel/seckill-agent/internal/clock"
)

const (
	maxRetries     = 3
	retryBaseDelay = 500 * time.Millisecond
	requestTimeout = 10 * time.Second
	maxErrorBody   = 500
)

// Webhook posts the outcome as JSON. 429 and 5xx responses are retried with
// exponential backoff, other 4xx are not.
type Webhook struct {
	url    string
	http   *http.Client
	clock  clock.Clock
	logger zerolog.Logger
}

type WebhookOption func(*Webhook)

func WithHTTPClient(c *http.Client) WebhookOption { return func(w *Webhook) { w.http = c } }

func WithClock(c clock.Clock) WebhookOption { return func(w *Webhook) { w.clock = c } }

func NewWebhook(url string, logger zerolog.Logger, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:    url,
		http:   &http.Client{Timeout: requestTimeout},
		clock:  clock.Real{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type webhookPayload struct {
	Event   string        `json:"event"`
	Outcome agent.Outcome `json:"outcome"`
}

func (w *Webhook) Notify(ctx context.Context, out agent.Outcome) error {
	body, err := json.Marshal(webhookPayload{Event: "seckill.finished", Outcome: out})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryBaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxElapsedTime = 0

	attempt := 0
	exhausted := true
	operation := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			exhausted = false
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.http.Do(req)
		if err != nil {
			err = fmt.Errorf("http request: %w", err)
			if ctx.Err() != nil {
				exhausted = false
				return backoff.Permanent(err)
			}
			return err
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()

		w.logger.Debug().Int("status", resp.StatusCode).Int("attempt", attempt).Msg("webhook response")
		if resp.StatusCode < 300 {
			return nil
		}
		err = fmt.Errorf("webhook %d: %s", resp.StatusCode, bytes.TrimSpace(data))
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			exhausted = false
			return backoff.Permanent(err)
		}
		return err
	}
	onRetry := func(err error, delay time.Duration) {
		w.logger.Info().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying webhook")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)
	err = backoff.RetryNotifyWithTimer(operation, policy, onRetry, &clockTimer{clock: w.clock, ctx: ctx})
	if err == nil {
		return nil
	}
	if exhausted && ctx.Err() == nil {
		return fmt.Errorf("max retries exceeded: %w", err)
	}
	return err
}

// clockTimer runs backoff waits on a clock.Clock.
type clockTimer struct {
	clock  clock.Clock
	ctx    context.Context
	c      chan time.Time
	cancel context.CancelFunc
}

func (t *clockTimer) Start(d time.Duration) {
	ctx, cancel := context.WithCancel(t.ctx)
	c := make(chan time.Time, 1)
	t.c, t.cancel = c, cancel
	go func() {
		defer cancel()
		if t.clock.Sleep(ctx, d) == nil {
			c <- t.clock.Now()
		}
	}()
}

func (t *clockTimer) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *clockTimer) C() <-chan time.Time { return t.c }
