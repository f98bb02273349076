// Package notify delivers run outcomes and records orchestrator events.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/polzovatel/seckill-agent/internal/agent"
)

type Config struct {
	Console    bool   `mapstructure:"console"`
	WebhookURL string `mapstructure:"webhook_url"`
}

// Multi fans an outcome out to every notifier and joins their errors.
type Multi []agent.Notifier

func (m Multi) Notify(ctx context.Context, out agent.Outcome) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, out); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds the notifiers enabled in cfg. It returns nil when none are.
func New(cfg Config, stdout io.Writer, logger zerolog.Logger) (agent.Notifier, error) {
	var m Multi
	if cfg.Console {
		m = append(m, NewConsole(stdout))
	}
	if raw := strings.TrimSpace(cfg.WebhookURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("invalid webhook url: %q (use http or https)", raw)
		}
		m = append(m, NewWebhook(u.String(), logger.With().Str("comp", "webhook").Logger()))
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}
