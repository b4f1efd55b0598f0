package stream

import (
	"testing"

	"boardsync/domain"
)

func drain(t *testing.T, sub *Subscriber) []byte {
	t.Helper()
	select {
	case data := <-sub.Events():
		return data
	default:
		return nil
	}
}

func TestDispatchBroadcastsStateEvents(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe("client-a")
	b := hub.Subscribe("client-b")

	hub.Dispatch(domain.Event{Type: domain.EventTaskCreated}, []byte("payload"))

	if got := drain(t, a); string(got) != "payload" {
		t.Fatalf("expected client-a to receive the event, got %q", got)
	}
	if got := drain(t, b); string(got) != "payload" {
		t.Fatalf("expected client-b to receive the event, got %q", got)
	}
}

func TestDispatchConflictReachesInitiatorOnly(t *testing.T) {
	hub := NewHub()
	initiator := hub.Subscribe("client-a")
	bystander := hub.Subscribe("client-b")
	secondTab := hub.Subscribe("client-a")

	hub.Dispatch(domain.Event{Type: domain.EventConflict, TargetClientID: "client-a"}, []byte("conflict"))

	if got := drain(t, initiator); string(got) != "conflict" {
		t.Fatalf("expected initiator to receive the conflict, got %q", got)
	}
	if got := drain(t, secondTab); string(got) != "conflict" {
		t.Fatalf("expected the initiator's other connection to receive it too, got %q", got)
	}
	if got := drain(t, bystander); got != nil {
		t.Fatalf("bystander must not see conflicts, got %q", got)
	}
}

func TestDispatchConflictWithoutTargetIsDropped(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("client-a")

	hub.Dispatch(domain.Event{Type: domain.EventConflict}, []byte("conflict"))

	if got := drain(t, sub); got != nil {
		t.Fatalf("untargeted conflicts must be dropped, got %q", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("client-a")
	hub.Unsubscribe(sub)

	hub.Dispatch(domain.Event{Type: domain.EventTaskCreated}, []byte("payload"))

	if got := drain(t, sub); got != nil {
		t.Fatalf("unsubscribed connection must not receive events, got %q", got)
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("client-a")

	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Dispatch(domain.Event{Type: domain.EventTaskCreated}, []byte("payload"))
	}

	var received int
	for drain(t, sub) != nil {
		received++
	}
	if received != subscriberBuffer {
		t.Fatalf("expected exactly %d buffered events, got %d", subscriberBuffer, received)
	}
}
