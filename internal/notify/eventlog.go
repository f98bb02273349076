package notify

import (
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/polzovatel/seckill-agent/internal/agent"
)

// EventLog writes every orchestrator event as one JSON line.
type EventLog struct {
	logger zerolog.Logger
	closer io.Closer
}

// NewEventLog logs to w. Use OpenEventLog for a rotated file.
func NewEventLog(w io.Writer) *EventLog {
	return &EventLog{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// OpenEventLog appends to path, rotating at maxSizeMB and keeping maxBackups.
func OpenEventLog(path string, maxSizeMB, maxBackups int) *EventLog {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	el := NewEventLog(lj)
	el.closer = lj
	return el
}

func (l *EventLog) Observe(e agent.Event) {
	ev := l.logger.Info()
	if e.Err != nil {
		ev = l.logger.Warn().Err(e.Err)
	}
	ev.Str("run", e.RunID).
		Str("kind", string(e.Kind)).
		Time("at", e.At).
		Str("phase", e.Phase.String()).
		Int("cycle", e.Cycle)

	switch e.Kind {
	case agent.EventStateClassified:
		ev.Str("url", e.Location).Str("state", e.State.String())
	case agent.EventCandidateResolved:
		ev.Str("intent", e.Intent.String()).Int("candidates", e.Candidates)
		if e.Candidates > 0 {
			ev.Str("label", e.Label).Float64("score", e.Score).Str("tier", e.Tier.String())
		}
	case agent.EventActionAttempted:
		ev.Str("intent", e.Intent.String()).
			Str("label", e.Label).
			Float64("score", e.Score).
			Str("method", string(e.Method)).
			Bool("dispatched", e.Dispatched)
	case agent.EventStagnation, agent.EventKeepAlive:
		ev.Str("url", e.Location)
	case agent.EventRecovery:
		ev.Str("recovery", e.Recovery.String())
	case agent.EventTerminal:
		if e.Outcome != nil {
			ev.Bool("success", e.Outcome.Success).
				Float64("elapsed_s", e.Outcome.ElapsedSeconds).
				Int("cycles", e.Outcome.Cycles).
				Int("reloads", e.Outcome.Reloads).
				Str("url", e.Outcome.FinalLocation)
		}
	}
	ev.Send()
}

func (l *EventLog) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
