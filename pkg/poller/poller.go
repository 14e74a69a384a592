package poller

import (
	"context"
	"time"

	"github.com/devicelab-dev/comesee-snapshots/pkg/logger"
	"github.com/devicelab-dev/comesee-snapshots/pkg/uitree"
)

// DefaultInterval is the pause between samples.
const DefaultInterval = 400 * time.Millisecond

// DefaultFinalSampleTimeout bounds the sample taken after the deadline.
const DefaultFinalSampleTimeout = 2 * time.Second

// Source provides the current accessibility tree. Implementations must
// return once ctx is done.
type Source interface {
	Source(ctx context.Context) (*uitree.Element, error)
}

// Indicators names the elements sampled on each poll.
type Indicators struct {
	DeniedText string // e.g. "사진 접근 권한이 필요합니다"
	EmptyText  string // e.g. "사진을 찾을 수 없습니다"
}

// Poller samples a Source until the screen settles.
type Poller struct {
	source     Source
	indicators Indicators

	// Interval between samples; DefaultInterval when zero.
	Interval time.Duration

	// StrictFallback reports StateUnknown instead of StateEmpty when the
	// timeout elapses with no grid container on screen.
	StrictFallback bool

	// FinalSampleTimeout bounds the fallback sample taken once the poll
	// deadline passes; DefaultFinalSampleTimeout when zero.
	FinalSampleTimeout time.Duration

	// BeforeSample runs ahead of every sample; the scenario uses it to
	// dispatch the system-alert monitor.
	BeforeSample func(ctx context.Context)

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// New creates a poller over source.
func New(source Source, indicators Indicators) *Poller {
	return &Poller{
		source:             source,
		indicators:         indicators,
		Interval:           DefaultInterval,
		FinalSampleTimeout: DefaultFinalSampleTimeout,
		now:                time.Now,
		sleep:              sleepContext,
	}
}

// Sample takes one observation. A failed tree read yields an empty sample.
func (p *Poller) Sample(ctx context.Context) Sample {
	if p.BeforeSample != nil {
		p.BeforeSample(ctx)
	}

	root, err := p.source.Source(ctx)
	if err != nil {
		logger.Debug("poller: source read failed: %v", err)
		return Sample{}
	}

	var s Sample
	s.Denied = root.Exists(uitree.StaticText(p.indicators.DeniedText))
	s.Empty = root.Exists(uitree.StaticText(p.indicators.EmptyText))
	if grid := root.Find(uitree.OfType(uitree.TypeCollectionView)); grid != nil {
		s.GridPresent = true
		s.GridHasItems = grid.Exists(uitree.OfType(uitree.TypeCell))
	}
	return s
}

// Wait polls until Classify resolves or timeout elapses. It returns as soon
// as a sample resolves. After the deadline one final sample decides: a grid
// container on screen means a slow-loading grid, anything else is reported
// as empty (or unknown under StrictFallback). Each sample is bounded by the
// remaining time and the final one by FinalSampleTimeout. Wait never fails;
// cancelling ctx skips straight to the final sample.
func (p *Poller) Wait(ctx context.Context, timeout time.Duration) PollResult {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	start := p.now()
	deadline := start.Add(timeout)
	polls := 0

	for p.now().Before(deadline) && ctx.Err() == nil {
		polls++
		sampleCtx, cancel := context.WithTimeout(ctx, deadline.Sub(p.now()))
		sample := p.Sample(sampleCtx)
		cancel()
		if state, ok := Classify(sample); ok {
			logger.Debug("poller: resolved %s after %d polls", state, polls)
			return PollResult{State: state, Polls: polls, Elapsed: p.now().Sub(start)}
		}
		p.sleep(ctx, interval)
	}

	finalTimeout := p.FinalSampleTimeout
	if finalTimeout <= 0 {
		finalTimeout = DefaultFinalSampleTimeout
	}
	polls++
	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalTimeout)
	final := p.Sample(finalCtx)
	cancel()
	state := StateEmpty
	switch {
	case final.GridPresent:
		state = StateGrid
	case p.StrictFallback:
		state = StateUnknown
	}
	logger.Info("poller: timed out after %d polls, falling back to %s", polls, state)
	return PollResult{State: state, TimedOut: true, Polls: polls, Elapsed: p.now().Sub(start)}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
