package events

import (
	"encoding/json"
	"testing"

	"talimchat/internal/models"

	"github.com/rs/zerolog"
)

func newTestRegistry() *Registry {
	logger := zerolog.Nop()
	return NewRegistry(&logger)
}

func TestRegistry_DispatchOrder(t *testing.T) {
	r := newTestRegistry()

	var got []int
	r.On(models.EventMessage, func(json.RawMessage) { got = append(got, 1) })
	r.On(models.EventMessage, func(json.RawMessage) { got = append(got, 2) })
	r.On(models.EventMessage, func(json.RawMessage) { got = append(got, 3) })

	r.Dispatch(models.EventMessage, nil)

	if len(got) != 3 {
		t.Fatalf("expected 3 handler calls, got %d", len(got))
	}
	for i, v := range got {
		if v != i+1 {
			t.Errorf("handlers ran out of registration order: %v", got)
			break
		}
	}
}

func TestRegistry_DispatchOnlyMatchingKind(t *testing.T) {
	r := newTestRegistry()

	calls := 0
	r.On(models.EventMessage, func(json.RawMessage) { calls++ })

	r.Dispatch(models.EventNotification, nil)
	if calls != 0 {
		t.Errorf("handler fired for wrong event kind")
	}

	r.Dispatch(models.EventMessage, nil)
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRegistry_UnsubscribeIdempotent(t *testing.T) {
	r := newTestRegistry()

	calls := 0
	other := 0
	unsub := r.On(models.EventMessage, func(json.RawMessage) { calls++ })
	r.On(models.EventMessage, func(json.RawMessage) { other++ })

	unsub()
	unsub() // second call must be a no-op, not a panic or misremoval
	unsub()

	r.Dispatch(models.EventMessage, nil)
	if calls != 0 {
		t.Errorf("unsubscribed handler fired")
	}
	if other != 1 {
		t.Errorf("remaining handler should still fire, got %d calls", other)
	}
}

func TestRegistry_SubscribeBeforeTransport(t *testing.T) {
	// Subscribing before any transport exists must hand back a working
	// unsubscribe rather than failing.
	r := newTestRegistry()
	unsub := r.On(models.EventRoomsUpdate, func(json.RawMessage) {
		t.Error("handler fired without dispatch")
	})
	unsub()
}

func TestSubscribe_TypedDecode(t *testing.T) {
	r := newTestRegistry()

	var got models.RoomsUpdate
	Subscribe(r, models.EventRoomsUpdate, func(u models.RoomsUpdate) { got = u })

	r.Dispatch(models.EventRoomsUpdate, json.RawMessage(`{"rooms":[{"roomId":"r1","type":"group"}],"totalRooms":1}`))

	if got.TotalRooms != 1 || len(got.Rooms) != 1 || got.Rooms[0].RoomID != "r1" {
		t.Errorf("unexpected decode result: %+v", got)
	}
}

func TestSubscribe_MalformedPayloadDropped(t *testing.T) {
	r := newTestRegistry()

	calls := 0
	Subscribe(r, models.EventRoomsUpdate, func(models.RoomsUpdate) { calls++ })

	r.Dispatch(models.EventRoomsUpdate, json.RawMessage(`"not an object"`))
	if calls != 0 {
		t.Errorf("malformed payload should be dropped, handler ran %d times", calls)
	}

	r.Dispatch(models.EventRoomsUpdate, json.RawMessage(`{"totalRooms":2}`))
	if calls != 1 {
		t.Errorf("valid payload after a malformed one should still dispatch")
	}
}
