package notify

import (
	"testing"

	"netmoded/internal/netmode"
	"netmoded/util"
)

func TestBus_DeliversInOrder(t *testing.T) {
	bus := NewBus(util.NewLogger(0))

	var order []string
	for _, name := range []string{"display", "logger", "third"} {
		name := name
		bus.Subscribe(name, func(netmode.Event) {
			order = append(order, name)
		})
	}

	bus.Publish(netmode.Event{Kind: netmode.EventTransition})

	want := []string{"display", "logger", "third"}
	if len(order) != len(want) {
		t.Fatalf("delivered to %d subscribers, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("delivery %d went to %s, want %s", i, order[i], want[i])
		}
	}
}

func TestBus_PanicDoesNotStopDelivery(t *testing.T) {
	bus := NewBus(util.NewLogger(0))

	delivered := false
	bus.Subscribe("broken", func(netmode.Event) {
		panic("render crashed")
	})
	bus.Subscribe("healthy", func(netmode.Event) {
		delivered = true
	})

	// Must not panic out of Publish.
	bus.Publish(netmode.Event{Kind: netmode.EventStatus})

	if !delivered {
		t.Error("subscriber after the panicking one was skipped")
	}
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewBus(util.NewLogger(0))
	bus.Publish(netmode.Event{Kind: netmode.EventAdopted})
}

func TestBus_SubscribersGetValueCopies(t *testing.T) {
	bus := NewBus(util.NewLogger(0))

	bus.Subscribe("mutator", func(e netmode.Event) {
		e.State.Current = netmode.ModeAccessPoint
	})
	var seen netmode.Mode
	bus.Subscribe("reader", func(e netmode.Event) {
		seen = e.State.Current
	})

	bus.Publish(netmode.Event{State: netmode.ModeState{Current: netmode.ModeClient}})

	if seen != netmode.ModeClient {
		t.Errorf("later subscriber saw %v, want the original client mode", seen)
	}
}
