package resolve

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/seckill-agent/internal/snapshot"
	"github.com/polzovatel/seckill-agent/internal/surface"
)

const (
	defaultTopN          = 5
	defaultFloor         = 10
	defaultContainerText = 200
	maxContainers        = 10
	maxLabel             = 80
)

// Tier identifies the strategy that produced a candidate.
type Tier int

const (
	TierExact Tier = iota + 1
	TierHeuristic
	TierStructural
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierHeuristic:
		return "heuristic"
	case TierStructural:
		return "structural"
	}
	return "none"
}

// Candidate is one element considered for an intent. The handle is only valid
// within the cycle that resolved it.
type Candidate struct {
	Handle surface.Handle
	Label  string
	Box    surface.Box
	Depth  int
	Score  float64
	Tier   Tier
	Order  int
}

// Resolver enumerates, scores and ranks candidates cheapest tier first.
type Resolver struct {
	tables        Tables
	weights       Weights
	topN          int
	floor         float64
	containerText int
	callTimeout   time.Duration
	logger        zerolog.Logger
}

type Option func(*Resolver)

func WithTables(t Tables) Option { return func(r *Resolver) { r.tables = t } }

func WithWeights(w Weights) Option { return func(r *Resolver) { r.weights = w } }

func WithLogger(l zerolog.Logger) Option { return func(r *Resolver) { r.logger = l } }

func WithTopN(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.topN = n
		}
	}
}

// WithFloor sets the minimum confidence a tier must reach to end the search.
func WithFloor(f float64) Option {
	return func(r *Resolver) {
		if f >= 0 {
			r.floor = f
		}
	}
}

func WithCallTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.callTimeout = d }
}

func New(opts ...Option) *Resolver {
	r := &Resolver{
		tables:        DefaultTables(),
		weights:       DefaultWeights(),
		topN:          defaultTopN,
		floor:         defaultFloor,
		containerText: defaultContainerText,
		callTimeout:   3 * time.Second,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns at most topN candidates ordered by score, then document
// order. Query failures are logged and treated as "no match": a missing
// control is a loop state, not an error.
func (r *Resolver) Resolve(ctx context.Context, intent Intent, s surface.Surface) []Candidate {
	table, ok := r.tables[intent]
	if !ok {
		return nil
	}
	if c := r.exact(ctx, table, s); len(c) > 0 {
		return r.rank(c)
	}
	vp := r.viewport(ctx, s)
	if c := r.heuristic(ctx, table, s, vp); len(c) > 0 {
		return r.rank(c)
	}
	return r.rank(r.structural(ctx, table, s, vp))
}

func (r *Resolver) exact(ctx context.Context, t Table, s surface.Surface) []Candidate {
	var set candidateSet
	for _, marker := range t.Markers {
		callCtx, cancel := snapshot.WithDeadline(ctx, r.callTimeout)
		els, err := s.QueryAll(callCtx, marker)
		cancel()
		if err != nil {
			r.logger.Debug().Err(err).Str("marker", marker).Msg("exact query")
			continue
		}
		for _, el := range els {
			if el.Box.Empty() {
				continue
			}
			set.add(newCandidate(el, r.weights.ExactConfidence, TierExact))
		}
	}
	return set.above(r.floor)
}

func (r *Resolver) heuristic(ctx context.Context, t Table, s surface.Surface, vp surface.Box) []Candidate {
	if len(t.Keywords) == 0 {
		return nil
	}
	callCtx, cancel := snapshot.WithDeadline(ctx, r.callTimeout)
	els, err := s.QueryByKeywords(callCtx, surface.KeywordQuery{
		Keywords:      t.Keywords,
		MaxTextLength: t.MaxTextLength,
	})
	cancel()
	if err != nil {
		r.logger.Debug().Err(err).Msg("keyword query")
		return nil
	}
	var set candidateSet
	for _, el := range els {
		if el.Box.Empty() || excluded(el.Text, t.Exclude) {
			continue
		}
		set.add(newCandidate(el, r.weights.score(el, t, vp), TierHeuristic))
	}
	return set.above(r.floor)
}

// structural finds loosely matching containers and scores the interactive
// nodes nested inside them, recovering controls wrapped in plain markup.
func (r *Resolver) structural(ctx context.Context, t Table, s surface.Surface, vp surface.Box) []Candidate {
	if len(t.Keywords) == 0 {
		return nil
	}
	callCtx, cancel := snapshot.WithDeadline(ctx, r.callTimeout)
	containers, err := s.QueryByKeywords(callCtx, surface.KeywordQuery{
		Keywords:      t.Keywords,
		MaxTextLength: r.containerText,
		Containers:    true,
	})
	cancel()
	if err != nil {
		r.logger.Debug().Err(err).Msg("container query")
		return nil
	}
	if len(containers) > maxContainers {
		containers = containers[:maxContainers]
	}
	var set candidateSet
	for _, c := range containers {
		if c.Box.Empty() {
			continue
		}
		callCtx, cancel := snapshot.WithDeadline(ctx, r.callTimeout)
		desc, err := s.Descendants(callCtx, c.Handle)
		cancel()
		if err != nil {
			r.logger.Debug().Err(err).Str("container", string(c.Handle)).Msg("descendants")
			continue
		}
		for _, el := range desc {
			if el.Box.Empty() || !el.InteractiveLooking() || excluded(el.Text, t.Exclude) {
				continue
			}
			set.add(newCandidate(el, r.weights.score(el, t, vp), TierStructural))
		}
	}
	return set.above(r.floor)
}

func (r *Resolver) viewport(ctx context.Context, s surface.Surface) surface.Box {
	callCtx, cancel := snapshot.WithDeadline(ctx, r.callTimeout)
	defer cancel()
	vp, err := s.Viewport(callCtx)
	if err != nil || vp.Empty() {
		return defaultViewport
	}
	return vp
}

func (r *Resolver) rank(c []Candidate) []Candidate {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		return c[i].Order < c[j].Order
	})
	if len(c) > r.topN {
		c = c[:r.topN]
	}
	return c
}

func newCandidate(el surface.Element, score float64, tier Tier) Candidate {
	label := strings.Join(strings.Fields(el.Text), " ")
	if rs := []rune(label); len(rs) > maxLabel {
		label = string(rs[:maxLabel])
	}
	return Candidate{
		Handle: el.Handle,
		Label:  label,
		Box:    el.Box,
		Depth:  el.Depth,
		Score:  score,
		Tier:   tier,
		Order:  el.Order,
	}
}

// candidateSet keeps one entry per handle, the highest scoring one, in
// insertion order.
type candidateSet struct {
	items []Candidate
	index map[surface.Handle]int
}

func (s *candidateSet) add(c Candidate) {
	if s.index == nil {
		s.index = map[surface.Handle]int{}
	}
	if i, ok := s.index[c.Handle]; ok {
		if c.Score > s.items[i].Score {
			s.items[i] = c
		}
		return
	}
	s.index[c.Handle] = len(s.items)
	s.items = append(s.items, c)
}

func (s *candidateSet) above(floor float64) []Candidate {
	var out []Candidate
	for _, c := range s.items {
		if c.Score >= floor {
			out = append(out, c)
		}
	}
	return out
}

func excluded(text string, words []string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" && strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
