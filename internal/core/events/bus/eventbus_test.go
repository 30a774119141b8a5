package bus

import (
	"errors"
	"testing"
)

type testObserver struct {
	publishCount   int
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnPublish(_ string, _ Event) {
	o.publishCount++
}

func (o *testObserver) OnDelivered(_ string, _ Event, handlers int, err error) {
	o.deliveredCount += handlers
	o.lastErr = err
}

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got Event
	_, err := b.SubscribeTopic("a1", "collision.enter", func(e Event) error {
		got = e
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err = b.PublishToTopic("a1", NewEvent("collision.enter", "a1", 1.5, "goal")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got.Source != "a1" || got.Time != 1.5 || got.Data != "goal" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestDeliveryOrder(t *testing.T) {
	b := New()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		_, _ = b.SubscribeTopic("t", "ev", func(Event) error { order = append(order, i); return nil })
	}
	_ = b.PublishToTopic("t", NewEvent("ev", "src", 0, nil))
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestHandlerErrorsJoined(t *testing.T) {
	b := New()
	e1, e2 := errors.New("one"), errors.New("two")
	_, _ = b.SubscribeTopic("t", "x", func(Event) error { return e1 })
	_, _ = b.SubscribeTopic("t", "x", func(Event) error { return e2 })
	err := b.PublishToTopic("t", NewEvent("x", "src", 0, nil))
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Fatalf("expected both errors, got %v", err)
	}
}

func TestTopicsIsolation(t *testing.T) {
	b := New()
	if err := b.CreateTopic("t1"); err != nil {
		t.Fatalf("topic: %v", err)
	}
	if err := b.CreateTopic("t2"); err != nil {
		t.Fatalf("topic: %v", err)
	}
	count1 := 0
	count2 := 0
	_, _ = b.SubscribeTopic("t1", "ev", func(e Event) error { count1++; return nil })
	_, _ = b.SubscribeTopic("t2", "ev", func(e Event) error { count2++; return nil })
	_ = b.PublishToTopic("t1", NewEvent("ev", "src", 0, nil))
	if count1 != 1 || count2 != 0 {
		t.Fatalf("topic isolation failed: %d %d", count1, count2)
	}
	if err := b.PublishToTopic("missing", NewEvent("ev", "src", 0, nil)); !errors.Is(err, ErrUnknownTopic) {
		t.Fatalf("expected ErrUnknownTopic, got %v", err)
	}
}

func TestDeleteTopicDeactivatesSubscriptions(t *testing.T) {
	b := New()
	_ = b.CreateTopic("agent-1")
	sub, _ := b.SubscribeTopic("agent-1", "ev", func(Event) error { return nil })
	if err := b.DeleteTopic("agent-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if sub.IsActive() {
		t.Fatal("subscription still active")
	}
	if err := b.DeleteTopic("agent-1"); !errors.Is(err, ErrUnknownTopic) {
		t.Fatalf("expected ErrUnknownTopic, got %v", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	calls := 0
	sub, _ := b.SubscribeTopic("t", "ev", func(Event) error { calls++; return nil })
	if sub.ID() == "" || sub.EventType() != "ev" || sub.Topic() != "t" {
		t.Fatalf("bad subscription: %q %q %q", sub.ID(), sub.EventType(), sub.Topic())
	}
	_ = b.PublishToTopic("t", NewEvent("ev", "src", 0, nil))
	if err := b.Unsubscribe(sub); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	_ = sub.Cancel()
	_ = b.PublishToTopic("t", NewEvent("ev", "src", 0, nil))
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if err := b.Unsubscribe(nil); err != nil {
		t.Fatalf("nil unsubscribe: %v", err)
	}
}

func TestFiltersAndMetrics(t *testing.T) {
	b := New()
	obs := &testObserver{}
	b.AddObserver(obs)
	calls := 0
	_, _ = b.SubscribeTopic("t", "ev", func(Event) error { calls++; return nil })

	onlyLate := func(e Event) bool { return e.Time >= 1 }
	_ = b.PublishToTopic("t", NewEvent("ev", "src", 0.5, nil), onlyLate)
	_ = b.PublishToTopic("t", NewEvent("ev", "src", 2, nil), onlyLate)

	if calls != 1 {
		t.Fatalf("expected 1 delivery, got %d", calls)
	}
	m := b.GetMetrics()
	if m.Published != 1 || m.DeliveredHandlers != 1 || m.DroppedByFilters != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if obs.publishCount != 1 || obs.deliveredCount != 1 || obs.lastErr != nil {
		t.Fatalf("unexpected observer state: %+v", obs)
	}

	b.RemoveObserver(obs)
	_ = b.PublishToTopic("t", NewEvent("ev", "src", 3, nil))
	if obs.publishCount != 1 {
		t.Fatal("observer still notified after removal")
	}
	if b.GetMetrics().Published != 1 {
		t.Fatal("metrics collected without observer")
	}
}

func TestGetTopics(t *testing.T) {
	b := New()
	_ = b.CreateTopic("a")
	_, _ = b.SubscribeTopic("a", "x", func(Event) error { return nil })
	_, _ = b.SubscribeTopic("a", "y", func(Event) error { return nil })
	var found bool
	for _, ti := range b.GetTopics() {
		if ti.Name == "a" {
			found = true
			if ti.EventTypes != 2 || ti.Subs != 2 {
				t.Fatalf("unexpected topic info: %+v", ti)
			}
		}
	}
	if !found {
		t.Fatal("topic a missing")
	}

	_ = b.DeleteTopic("a")
	if n := len(b.GetTopics()); n != 0 {
		t.Fatalf("expected no topics, got %d", n)
	}
}
