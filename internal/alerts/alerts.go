package alerts

import (
	"context"
	"time"

	"github.com/c-pro/geche"
	"github.com/rs/zerolog"
)

const (
	DefaultTTL      = 30 * time.Second
	cleanupInterval = time.Second
)

// Sink receives the alerts that survive deduplication. A UI layer would
// render these as toasts; the default sink logs them.
type Sink func(text string)

type Config struct {
	TTL    time.Duration
	Sink   Sink
	Logger *zerolog.Logger
}

// Notifier surfaces user-visible alerts while suppressing repeats: a flaky
// connection emitting the same "connection lost" every few seconds must not
// spam the user, so identical alerts inside the TTL window are dropped.
type Notifier struct {
	recent geche.Geche[string, time.Time]
	sink   Sink
	logger zerolog.Logger
	now    func() time.Time
}

func New(ctx context.Context, cfg Config) *Notifier {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	n := &Notifier{
		recent: geche.NewMapTTLCache[string, time.Time](ctx, cfg.TTL, cleanupInterval),
		sink:   cfg.Sink,
		logger: cfg.Logger.With().Str("component", "alerts").Logger(),
		now:    time.Now,
	}
	if n.sink == nil {
		n.sink = func(text string) {
			n.logger.Warn().Msg(text)
		}
	}
	return n
}

// Notify surfaces text to the user unless an identical alert fired within
// the TTL window. It reports whether the alert was delivered.
func (n *Notifier) Notify(text string) bool {
	if _, err := n.recent.Get(text); err == nil {
		n.logger.Debug().Str("alert", text).Msg("duplicate alert suppressed")
		return false
	}
	n.recent.Set(text, n.now())
	n.sink(text)
	return true
}
