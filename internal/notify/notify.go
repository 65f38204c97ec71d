// Package notify fans controller events out to the subsystems that
// care about them, e.g. the display listener.
package notify

import (
	"sync"

	"netmoded/internal/netmode"
	"netmoded/util"
)

// Bus delivers events to subscribers synchronously, in registration
// order.  A panicking subscriber is logged and skipped; it never takes
// the publisher down with it.
type Bus struct {
	log *util.Logger

	mu   sync.RWMutex
	subs []subscriber
}

type subscriber struct {
	name string
	fn   func(netmode.Event)
}

func NewBus(log *util.Logger) *Bus {
	return &Bus{log: log}
}

// Subscribe registers fn under a name used in log messages.  Later
// subscribers see each event after earlier ones.
func (b *Bus) Subscribe(name string, fn func(netmode.Event)) {
	b.mu.Lock()
	b.subs = append(b.subs, subscriber{name: name, fn: fn})
	b.mu.Unlock()
	b.log.Debug("notify: %s subscribed", name)
}

// Publish hands e to every subscriber and returns when the last one is
// done.  Subscribers that need to block must hand off to their own
// goroutine.
func (b *Bus) Publish(e netmode.Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, e)
	}
}

func (b *Bus) deliver(s subscriber, e netmode.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("notify: subscriber %s panicked: %v", s.name, r)
		}
	}()
	s.fn(e)
}
