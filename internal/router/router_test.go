package router

import (
	"testing"
)

func TestSendDeliversToSubscriber(t *testing.T) {
	r := New()

	var got []Message
	r.Subscribe("worker-1", func(m Message) {
		got = append(got, m)
	})

	msg := r.Send("coordinator", "worker-1", "task_assignment", "do the thing")

	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if got[0].ID != msg.ID {
		t.Errorf("expected message id %s, got %s", msg.ID, got[0].ID)
	}
	if got[0].From != "coordinator" || got[0].To != "worker-1" {
		t.Errorf("unexpected envelope: %+v", got[0])
	}
	if got[0].Payload != "do the thing" {
		t.Errorf("unexpected payload: %v", got[0].Payload)
	}
}

func TestSendDoesNotDeliverToOthers(t *testing.T) {
	r := New()

	delivered := false
	r.Subscribe("worker-2", func(m Message) { delivered = true })

	r.Send("coordinator", "worker-1", "ping", nil)

	if delivered {
		t.Error("worker-2 should not receive a message addressed to worker-1")
	}
}

func TestBroadcastDeliversToAll(t *testing.T) {
	r := New()

	counts := make(map[string]int)
	r.Subscribe("worker-1", func(m Message) { counts["worker-1"]++ })
	r.Subscribe("worker-2", func(m Message) { counts["worker-2"]++ })
	r.SubscribeAll(func(m Message) { counts["*"]++ })

	msg := r.Broadcast("coordinator", "shutdown", nil)

	if msg.To != "" {
		t.Errorf("broadcast message should have empty To, got %q", msg.To)
	}
	for _, id := range []string{"worker-1", "worker-2", "*"} {
		if counts[id] != 1 {
			t.Errorf("expected 1 delivery to %s, got %d", id, counts[id])
		}
	}
}

func TestSubscribeAllReceivesDirectMessages(t *testing.T) {
	r := New()

	count := 0
	r.SubscribeAll(func(m Message) { count++ })

	r.Send("a", "b", "ping", nil)

	if count != 1 {
		t.Errorf("expected subscribe-all handler to see direct sends, got %d", count)
	}
}

func TestPanickingSubscriberIsolated(t *testing.T) {
	r := New()

	var errs []DeliveryError
	r.OnDeliveryError(func(e DeliveryError) { errs = append(errs, e) })

	delivered := false
	r.Subscribe("worker-1", func(m Message) { panic("boom") })
	r.Subscribe("worker-1", func(m Message) { delivered = true })

	msg := r.Send("coordinator", "worker-1", "ping", nil)

	if !delivered {
		t.Error("second subscriber should still receive the message")
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 delivery error, got %d", len(errs))
	}
	if errs[0].Message.ID != msg.ID {
		t.Errorf("delivery error should carry the message, got %+v", errs[0].Message)
	}
	if errs[0].Err == nil {
		t.Error("delivery error should carry the cause")
	}
}

func TestUnsubscribeFunc(t *testing.T) {
	r := New()

	count := 0
	unsubscribe := r.Subscribe("worker-1", func(m Message) { count++ })

	r.Send("a", "worker-1", "ping", nil)
	unsubscribe()
	r.Send("a", "worker-1", "ping", nil)

	if count != 1 {
		t.Errorf("expected 1 delivery after unsubscribe, got %d", count)
	}
}

func TestUnsubscribeID(t *testing.T) {
	r := New()

	count := 0
	r.Subscribe("worker-1", func(m Message) { count++ })
	r.Subscribe("worker-1", func(m Message) { count++ })

	r.Unsubscribe("worker-1")
	r.Send("a", "worker-1", "ping", nil)

	if count != 0 {
		t.Errorf("expected no deliveries after Unsubscribe, got %d", count)
	}
}

func TestClear(t *testing.T) {
	r := New()

	count := 0
	r.Subscribe("worker-1", func(m Message) { count++ })
	r.SubscribeAll(func(m Message) { count++ })

	r.Clear()
	r.Broadcast("a", "ping", nil)

	if count != 0 {
		t.Errorf("expected no deliveries after Clear, got %d", count)
	}
}

func TestMessageCount(t *testing.T) {
	r := New()

	r.Send("a", "b", "ping", nil)
	r.Broadcast("a", "ping", nil)

	if got := r.MessageCount(); got != 2 {
		t.Errorf("expected message count 2, got %d", got)
	}
}
