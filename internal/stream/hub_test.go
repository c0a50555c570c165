package stream_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/curioapp/curio/internal/logger"
	"github.com/curioapp/curio/internal/store"
	"github.com/curioapp/curio/internal/stream"
)

func bookmarkChange(id string) store.Change {
	return store.Change{
		Kind:     store.Inserted,
		Table:    store.TableBookmarks,
		ID:       id,
		Bookmark: &store.Bookmark{ID: id},
	}
}

func recv(t *testing.T, sub *stream.Subscription) store.Change {
	t.Helper()
	select {
	case ch, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
		return store.Change{}
	}
}

func TestHub_PublishDelivers(t *testing.T) {
	hub := stream.NewHub(logger.Nop())
	sub := hub.Subscribe("owner1")
	defer sub.Close()

	hub.Publish("owner1", bookmarkChange("b1"))

	got := recv(t, sub)
	if got.ID != "b1" || got.Kind != store.Inserted {
		t.Errorf("got %+v, want inserted b1", got)
	}
}

func TestHub_OwnerScoping(t *testing.T) {
	hub := stream.NewHub(logger.Nop())
	mine := hub.Subscribe("owner1")
	defer mine.Close()
	theirs := hub.Subscribe("owner2")
	defer theirs.Close()

	hub.Publish("owner1", bookmarkChange("b1"))

	recv(t, mine)
	select {
	case ch := <-theirs.Events():
		t.Errorf("owner2 received owner1's event: %+v", ch)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_FanOut(t *testing.T) {
	hub := stream.NewHub(logger.Nop())
	a := hub.Subscribe("owner1")
	defer a.Close()
	b := hub.Subscribe("owner1")
	defer b.Close()

	hub.Publish("owner1", bookmarkChange("b1"))

	if got := recv(t, a); got.ID != "b1" {
		t.Errorf("a got %q", got.ID)
	}
	if got := recv(t, b); got.ID != "b1" {
		t.Errorf("b got %q", got.ID)
	}
}

func TestHub_SlowSubscriberDropsEvents(t *testing.T) {
	hub := stream.NewHub(logger.Nop())
	sub := hub.Subscribe("owner1")

	// Publish more than the buffer with nothing reading. Publish must not
	// block; the overflow is dropped.
	const total = 200
	for i := 0; i < total; i++ {
		hub.Publish("owner1", bookmarkChange(fmt.Sprintf("b%d", i)))
	}

	sub.Close()
	received := 0
	for range sub.Events() {
		received++
	}
	if received == 0 || received >= total {
		t.Errorf("received %d events, want some but fewer than %d", received, total)
	}
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	hub := stream.NewHub(logger.Nop())
	sub := hub.Subscribe("owner1")

	sub.Close()
	sub.Close()

	if _, ok := <-sub.Events(); ok {
		t.Error("events channel should be closed")
	}

	// Publishing after the last subscriber is gone is a no-op.
	hub.Publish("owner1", bookmarkChange("b1"))
}

func TestHub_BroadcastResync(t *testing.T) {
	hub := stream.NewHub(logger.Nop())
	a := hub.Subscribe("owner1")
	defer a.Close()
	b := hub.Subscribe("owner2")
	defer b.Close()

	hub.BroadcastResync()

	if got := recv(t, a); got.Kind != store.Resync {
		t.Errorf("a got %s, want resync", got.Kind)
	}
	if got := recv(t, b); got.Kind != store.Resync {
		t.Errorf("b got %s, want resync", got.Kind)
	}
}

type recordingBridge struct {
	mu    sync.Mutex
	calls []store.Change
}

func (b *recordingBridge) Mirror(ownerID string, ch store.Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, ch)
}

func TestHub_PublishMirrorsToBridge(t *testing.T) {
	hub := stream.NewHub(logger.Nop())
	bridge := &recordingBridge{}
	hub.AttachBridge(bridge)

	hub.Publish("owner1", bookmarkChange("b1"))

	bridge.mu.Lock()
	defer bridge.mu.Unlock()
	if len(bridge.calls) != 1 || bridge.calls[0].ID != "b1" {
		t.Errorf("bridge calls = %+v, want one mirror of b1", bridge.calls)
	}
}
