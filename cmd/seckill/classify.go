package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/polzovatel/seckill-agent/internal/agent"
	"github.com/polzovatel/seckill-agent/internal/config"
	"github.com/polzovatel/seckill-agent/internal/page"
	"github.com/polzovatel/seckill-agent/internal/snapshot"
)

// newClassifyCmd classifies a location and text offline, for tuning markers.
func newClassifyCmd(v *viper.Viper, stdout io.Writer) *cobra.Command {
	var loc, text string
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a location and text sample with the configured markers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(v)
			if err != nil {
				return err
			}
			sig := snapshot.Signal{Location: loc, Text: text, CapturedAt: time.Now()}
			state := page.NewClassifier(cfg.Markers).Classify(sig)
			step := agent.Plan(state)
			next := step.Intent.String()
			switch {
			case state.Terminal():
				next = "done"
			case step.Recover != agent.RecoverNone:
				next = step.Recover.String()
			}
			_, err = fmt.Fprintf(stdout, "state=%s next=%s\n", state, next)
			return err
		},
	}
	cmd.Flags().StringVar(&loc, "url", "", "page location")
	cmd.Flags().StringVar(&text, "text", "", "visible text sample")
	return cmd
}
