// Package market summarises the state of the A-share market: index levels,
// breadth, sentiment, hot sectors and the market-wide comment table.
package market

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/config"
	"github.com/jingkaihe/skilldesk/pkg/logger"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
	"github.com/jingkaihe/skilldesk/pkg/utils"
)

// TimeLayout formats report timestamps
const TimeLayout = "2006-01-02 15:04:05"

// Snapshot is the market picture at one point in time
type Snapshot struct {
	Timestamp  string              `json:"timestamp"`
	Indices    []quotes.Index      `json:"indices"`
	Statistics *quotes.MarketStats `json:"statistics"`
}

// Option customises the market components
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Snapshotter builds market snapshots
type Snapshotter struct {
	provider quotes.Provider
	indices  []string
	now      func() time.Time
}

// NewSnapshotter creates a snapshotter for the configured indices
func NewSnapshotter(provider quotes.Provider, cfg config.MarketConfig, opts ...Option) *Snapshotter {
	o := newOptions(opts)
	return &Snapshotter{provider: provider, indices: cfg.Indices, now: o.now}
}

// Generate fetches index quotes and market statistics. A failure to load
// indices leaves the list empty; a failure to load statistics is an error.
func (s *Snapshotter) Generate(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Timestamp: s.now().Format(TimeLayout),
		Indices:   []quotes.Index{},
	}

	indices, err := s.provider.IndicesSnapshot(ctx, s.indices...)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to fetch index quotes")
	} else {
		for _, idx := range indices {
			idx.Price = utils.Round(idx.Price, 2)
			idx.Change = utils.Round(idx.Change, 2)
			idx.ChangePct = utils.Round(idx.ChangePct, 2)
			snap.Indices = append(snap.Indices, idx)
		}
	}

	stats, err := s.provider.MarketStatistics(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch market statistics")
	}
	snap.Statistics = stats
	return snap, nil
}
