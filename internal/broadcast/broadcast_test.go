package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// captureSink records delivered events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Deliver(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) delivered() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestDispatcher_DeliversEnqueuedEvents(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	ev := Event{
		Type:           EventSprintCompleted,
		OrganizationID: "org-1",
		SprintID:       "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		SprintName:     "Sprint 7",
		Velocity:       21,
		OccurredAt:     time.Now().UTC(),
	}
	if !d.Enqueue(ev) {
		t.Fatal("enqueue rejected with empty buffer")
	}

	deadline := time.After(2 * time.Second)
	for len(sink.delivered()) == 0 {
		select {
		case <-deadline:
			t.Fatal("event was not delivered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done

	got := sink.delivered()
	if len(got) != 1 {
		t.Fatalf("delivered %d events, want 1", len(got))
	}
	if got[0].SprintID != ev.SprintID || got[0].Velocity != 21 {
		t.Errorf("delivered event = %+v", got[0])
	}
}

func TestDispatcher_FullBufferDropsWithoutBlocking(t *testing.T) {
	// No Run loop: nothing consumes the channel.
	d := NewDispatcher(&captureSink{}, 2)

	if !d.Enqueue(Event{SprintID: "a"}) || !d.Enqueue(Event{SprintID: "b"}) {
		t.Fatal("buffered enqueues should succeed")
	}

	done := make(chan bool, 1)
	go func() {
		done <- d.Enqueue(Event{SprintID: "c"})
	}()

	select {
	case accepted := <-done:
		if accepted {
			t.Error("enqueue on full buffer reported accepted")
		}
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on full buffer")
	}
}

func TestDispatcher_DrainsBufferOnShutdown(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, 8)

	for i := 0; i < 3; i++ {
		d.Enqueue(Event{SprintID: "s", Velocity: float64(i)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if got := len(sink.delivered()); got != 3 {
		t.Errorf("drained %d events, want 3", got)
	}
}

func TestWebhookSink_PostsEventJSON(t *testing.T) {
	var received Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, 2*time.Second)
	ev := Event{Type: EventSprintCompleted, SprintID: "sp-1", Velocity: 13}
	if err := sink.Deliver(context.Background(), ev); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if received.Type != EventSprintCompleted || received.Velocity != 13 {
		t.Errorf("received = %+v", received)
	}
}

func TestWebhookSink_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, 2*time.Second)
	if err := sink.Deliver(context.Background(), Event{}); err == nil {
		t.Fatal("expected error for 502 response")
	}
}
