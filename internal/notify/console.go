package notify

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/polzovatel/seckill-agent/internal/agent"
)

// Console prints a one-screen summary of the outcome.
type Console struct {
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

func (c *Console) Notify(_ context.Context, out agent.Outcome) error {
	if out.Success {
		color.New(color.FgGreen, color.Bold).Fprintf(c.out, "✅ order reached payment in %.3fs\n", out.ElapsedSeconds)
	} else {
		color.New(color.FgRed, color.Bold).Fprintf(c.out, "❌ run failed after %d cycles (%s)\n", out.Cycles, out.LastState)
	}
	dim := color.New(color.Faint)
	dim.Fprintf(c.out, "   run:      %s\n", out.RunID)
	dim.Fprintf(c.out, "   url:      %s\n", out.FinalLocation)
	dim.Fprintf(c.out, "   cycles:   %d  reloads: %d  navigations: %d\n", out.Cycles, out.Reloads, out.Navigations)
	if out.Error != "" {
		color.New(color.FgYellow).Fprintf(c.out, "   error:    %s\n", out.Error)
	}
	for _, a := range out.Attempts {
		mark := "·"
		if a.Dispatched {
			mark = "→"
		}
		_, err := fmt.Fprintf(c.out, "   %s #%d %-17s %q score=%.1f tier=%s %s\n",
			mark, a.Cycle, a.Intent, a.Label, a.Score, a.Tier, a.Method)
		if err != nil {
			return err
		}
	}
	return nil
}
