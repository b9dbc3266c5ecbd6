package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestNotifier(t *testing.T, delivered *[]string) *Notifier {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := zerolog.Nop()
	return New(ctx, Config{
		TTL:    time.Minute,
		Logger: &logger,
		Sink: func(text string) {
			*delivered = append(*delivered, text)
		},
	})
}

func TestNotify_DeliversFirstOccurrence(t *testing.T) {
	var delivered []string
	n := newTestNotifier(t, &delivered)

	if !n.Notify("Connection lost") {
		t.Fatal("first occurrence should be delivered")
	}
	if len(delivered) != 1 || delivered[0] != "Connection lost" {
		t.Errorf("unexpected deliveries: %v", delivered)
	}
}

func TestNotify_SuppressesRepeatsWithinWindow(t *testing.T) {
	var delivered []string
	n := newTestNotifier(t, &delivered)

	n.Notify("Connection lost")
	if n.Notify("Connection lost") {
		t.Error("repeat inside the TTL window should be suppressed")
	}
	if n.Notify("Connection lost") {
		t.Error("every repeat inside the window should be suppressed")
	}
	if len(delivered) != 1 {
		t.Errorf("expected 1 delivery, got %d", len(delivered))
	}
}

func TestNotify_DistinctTextsAllDeliver(t *testing.T) {
	var delivered []string
	n := newTestNotifier(t, &delivered)

	n.Notify("Connection lost")
	n.Notify("Connected to real-time services")
	n.Notify("Connection lost") // suppressed; same text as the first

	want := []string{"Connection lost", "Connected to real-time services"}
	if len(delivered) != len(want) {
		t.Fatalf("expected %d deliveries, got %v", len(want), delivered)
	}
	for i := range want {
		if delivered[i] != want[i] {
			t.Errorf("delivery %d: expected %q, got %q", i, want[i], delivered[i])
		}
	}
}

func TestNew_DefaultSinkLogsWithoutPanicking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := zerolog.Nop()
	n := New(ctx, Config{Logger: &logger})

	if !n.Notify("something happened") {
		t.Error("default sink should still count as delivery")
	}
}
