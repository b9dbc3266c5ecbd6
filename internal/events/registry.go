package events

import (
	"encoding/json"
	"sync"

	"talimchat/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handler receives the raw payload of a dispatched event.
type Handler func(data json.RawMessage)

type subscription struct {
	id string
	fn Handler
}

// Registry is a topic-keyed publish/subscribe layer over the transport.
// Handlers for a kind run in registration order on every occurrence.
// The registry itself never originates events; Dispatch is driven only by
// inbound transport traffic.
type Registry struct {
	mu     sync.RWMutex
	subs   map[models.EventKind][]subscription
	logger zerolog.Logger
}

func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		subs:   make(map[models.EventKind][]subscription),
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// On registers fn for kind and returns an unsubscribe function. Registering
// works even before any transport exists; the handler simply does not fire
// until events arrive. The returned unsubscribe is idempotent and safe to
// call after the transport is gone.
func (r *Registry) On(kind models.EventKind, fn Handler) func() {
	id := uuid.NewString()

	r.mu.Lock()
	r.subs[kind] = append(r.subs[kind], subscription{id: id, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		subs := r.subs[kind]
		for i, s := range subs {
			if s.id == id {
				r.subs[kind] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Dispatch invokes every handler registered for kind, in registration order.
func (r *Registry) Dispatch(kind models.EventKind, data json.RawMessage) {
	r.mu.RLock()
	subs := make([]subscription, len(r.subs[kind]))
	copy(subs, r.subs[kind])
	r.mu.RUnlock()

	for _, s := range subs {
		s.fn(data)
	}
}

// Subscribe registers a typed handler for kind. Payloads that fail to decode
// are dropped with a log line rather than surfaced as errors: partial or
// malformed pushes must never break the stream for other subscribers.
func Subscribe[T any](r *Registry, kind models.EventKind, fn func(T)) func() {
	return r.On(kind, func(data json.RawMessage) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			r.logger.Warn().Err(err).Str("event", string(kind)).Msg("dropping undecodable payload")
			return
		}
		fn(v)
	})
}
