package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/polzovatel/seckill-agent/internal/action"
	"github.com/polzovatel/seckill-agent/internal/agent"
	"github.com/polzovatel/seckill-agent/internal/browser"
	"github.com/polzovatel/seckill-agent/internal/config"
	"github.com/polzovatel/seckill-agent/internal/notify"
	"github.com/polzovatel/seckill-agent/internal/page"
	"github.com/polzovatel/seckill-agent/internal/resolve"
	"github.com/polzovatel/seckill-agent/internal/snapshot"
)

type runOptions struct {
	ask       bool
	saveState string
}

func newRunCmd(v *viper.Viper, stdin io.Reader, stdout io.Writer) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Wait for the target time, then drive the cart to payment",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			for key, flag := range map[string]string{
				"target":                "target",
				"retry_budget":          "budget",
				"entry_url":             "entry",
				"browser.driver":        "driver",
				"browser.headless":      "headless",
				"browser.remote_url":    "remote",
				"browser.storage_state": "storage",
				"log.event_file":        "event-log",
				"log.level":             "log-level",
			} {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.ask {
				target, cancelled, err := promptTarget(stdin, stdout)
				if err != nil {
					return fmt.Errorf("prompt target: %w", err)
				}
				if cancelled {
					fmt.Fprintln(stdout, "Отменено.")
					return nil
				}
				v.Set("target", target)
			}
			cfg, err := config.New(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts, stdout)
		},
	}
	f := cmd.Flags()
	f.String("target", "", `start time, "2006-01-02 15:04:05", "15:04:05" or RFC3339 (empty = now)`)
	f.Int("budget", 50, "retry budget in cycles")
	f.String("entry", "", "entry URL used for recovery navigation")
	f.String("driver", "", "browser driver: playwright or chromedp")
	f.Bool("headless", false, "run the browser headless")
	f.String("remote", "", "attach to a running Chrome (DevTools URL)")
	f.String("storage", "", "Playwright storage state to preload")
	f.String("event-log", "", "write lifecycle events as JSON lines to this file")
	f.String("log-level", "info", "log level")
	f.BoolVar(&opts.ask, "ask", false, "prompt for the start time")
	f.StringVar(&opts.saveState, "save-state", "", "save updated storage state here after the run")
	return cmd
}

func run(parent context.Context, cfg *config.Config, opts runOptions, stdout io.Writer) error {
	setupLogger(cfg.Log)
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	target, err := cfg.TargetTime(time.Now())
	if err != nil {
		return err
	}

	session, err := browser.Open(ctx, cfg.Browser, log.With().Str("comp", "browser").Logger())
	if err != nil {
		return fmt.Errorf("browser init: %w", err)
	}
	defer session.Close(context.Background())

	notifier, err := notify.New(cfg.Notify, stdout, log.With().Str("comp", "notify").Logger())
	if err != nil {
		return err
	}

	agentOpts := []agent.Option{
		agent.WithReader(snapshot.NewReader(session,
			snapshot.WithTextSample(cfg.TextSample),
			snapshot.WithCallTimeout(cfg.CallTimeout),
			snapshot.WithLogger(log.With().Str("comp", "signal").Logger()),
		)),
		agent.WithClassifier(page.NewClassifier(cfg.Markers)),
		agent.WithResolver(resolve.New(
			resolve.WithTables(cfg.Tables()),
			resolve.WithWeights(cfg.Weights),
			resolve.WithTopN(cfg.TopN),
			resolve.WithFloor(cfg.MinConfidence),
			resolve.WithCallTimeout(cfg.CallTimeout),
			resolve.WithLogger(log.With().Str("comp", "resolve").Logger()),
		)),
		agent.WithExecutor(action.NewExecutor(session,
			action.WithCallTimeout(cfg.CallTimeout),
			action.WithLogger(log.With().Str("comp", "action").Logger()),
		)),
	}
	if notifier != nil {
		agentOpts = append(agentOpts, agent.WithNotifier(notifier))
	}
	if cfg.Log.EventFile != "" {
		events := notify.OpenEventLog(cfg.Log.EventFile, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups)
		defer events.Close()
		agentOpts = append(agentOpts, agent.WithObserver(events))
	}
	orch := agent.NewOrchestrator(cfg.Agent(), session, log.With().Str("comp", "orch").Logger(), agentOpts...)

	fmt.Fprintf(stdout, "Старт в %s, бюджет %d циклов\n", target.Format("2006-01-02 15:04:05.000"), cfg.RetryBudget)
	out, err := orch.Run(ctx, target, cfg.RetryBudget)

	if opts.saveState != "" {
		if serr := session.SaveState(context.WithoutCancel(ctx), opts.saveState); serr != nil {
			log.Error().Err(serr).Msg("save state")
		} else {
			log.Info().Str("path", opts.saveState).Msg("storage saved")
		}
	}
	if err != nil {
		return fmt.Errorf("run %s: %w", out.RunID, err)
	}
	if !out.Success {
		return errRunFailed
	}
	return nil
}

// promptTarget asks for the start time. An empty answer cancels.
func promptTarget(in io.Reader, out io.Writer) (string, bool, error) {
	reader := bufio.NewReader(in)
	fmt.Fprint(out, "Введите время старта (2006-01-02 15:04:05 или 15:04:05, пусто = отмена): ")
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", false, err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", true, nil
	}
	return line, false, nil
}
