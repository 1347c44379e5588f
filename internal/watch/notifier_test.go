package watch

import "testing"

func TestNotifierCoalesces(t *testing.T) {
	n := NewNotifier()
	ch, cancel := n.Subscribe("u1", Batches)
	defer cancel()

	for i := 0; i < 5; i++ {
		n.Publish("u1", Batches)
	}

	select {
	case <-ch:
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-ch:
		t.Fatal("expected bursts to collapse into one signal")
	default:
	}
}

func TestNotifierScoping(t *testing.T) {
	n := NewNotifier()
	ch, cancel := n.Subscribe("u1", Vessels)
	defer cancel()

	n.Publish("u2", Vessels)
	n.Publish("u1", Ingredients)

	select {
	case <-ch:
		t.Fatal("received a signal for another user or collection")
	default:
	}
}

func TestNotifierCancel(t *testing.T) {
	n := NewNotifier()
	_, cancel := n.Subscribe("u1", Batches)
	if n.Subscribers("u1") != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n.Subscribers("u1"))
	}
	cancel()
	cancel()
	if n.Subscribers("u1") != 0 {
		t.Errorf("expected 0 subscribers after cancel, got %d", n.Subscribers("u1"))
	}
	n.Publish("u1", Batches)
}
