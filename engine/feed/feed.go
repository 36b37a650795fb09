// Package feed streams registry change-log entries to NATS so assistant-layer
// consumers can follow port updates without polling the registry. The feed
// tracks the last published sequence number and publishes strictly in order.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/BoardsightAI/boardsight/engine/board"
)

// ChangeSubject is the NATS subject change events are published to.
const ChangeSubject = "engine.changes"

// defaultPollInterval between registry change-log sweeps.
const defaultPollInterval = 500 * time.Millisecond

// Publisher is the narrow slice of a NATS connection the feed needs.
// *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Event is the wire form of one change-log entry.
type Event struct {
	Board  string       `json:"board,omitempty"`
	Change board.Change `json:"change"`
}

// Feed publishes registry changes to a subject, rate-limited so a burst of
// port updates cannot flood the bus.
type Feed struct {
	pub     Publisher
	reg     *board.Registry
	limiter *rate.Limiter
	log     *slog.Logger

	board    string
	interval time.Duration
	lastSeq  uint64
}

// Option configures a Feed.
type Option func(*Feed)

// WithBoard stamps every event with a board label.
func WithBoard(name string) Option {
	return func(f *Feed) { f.board = name }
}

// WithRate overrides the publish rate limit.
func WithRate(eventsPerSec float64, burst int) Option {
	return func(f *Feed) { f.limiter = rate.NewLimiter(rate.Limit(eventsPerSec), burst) }
}

// WithPollInterval overrides how often the change log is swept.
func WithPollInterval(d time.Duration) Option {
	return func(f *Feed) { f.interval = d }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(f *Feed) { f.log = log }
}

// New creates a Feed over a publisher and registry. Defaults: 50 events/sec
// with a burst of 10, sweeping twice a second.
func New(pub Publisher, reg *board.Registry, opts ...Option) *Feed {
	f := &Feed{
		pub:      pub,
		reg:      reg,
		limiter:  rate.NewLimiter(rate.Limit(50), 10),
		log:      slog.Default(),
		interval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Flush publishes every change newer than the last published sequence.
// It returns the number of events published.
func (f *Feed) Flush(ctx context.Context) (int, error) {
	changes := f.reg.ChangesSince(f.lastSeq)
	published := 0
	for _, ch := range changes {
		if err := f.limiter.Wait(ctx); err != nil {
			return published, err
		}
		data, err := json.Marshal(Event{Board: f.board, Change: ch})
		if err != nil {
			return published, fmt.Errorf("feed: marshal change %d: %w", ch.Seq, err)
		}
		if err := f.pub.Publish(ChangeSubject, data); err != nil {
			return published, fmt.Errorf("feed: publish change %d: %w", ch.Seq, err)
		}
		f.lastSeq = ch.Seq
		published++
	}
	return published, nil
}

// Run sweeps the change log until the context is canceled. Publish failures
// log and leave lastSeq untouched so the next sweep retries from the same
// point.
func (f *Feed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.log.Info("feed: started", "subject", ChangeSubject, "interval", f.interval)
	for {
		select {
		case <-ctx.Done():
			f.log.Info("feed: stopped", "last_seq", f.lastSeq)
			return
		case <-ticker.C:
			n, err := f.Flush(ctx)
			if err != nil && ctx.Err() == nil {
				f.log.Error("feed: flush failed", "error", err)
			}
			if n > 0 {
				f.log.Debug("feed: published", "events", n, "last_seq", f.lastSeq)
			}
		}
	}
}
