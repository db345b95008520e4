package steam

import (
	"sync"

	"github.com/olifog/steam.py/wire"
)

// Subscription delivers unsolicited messages of one type. Cancel it when
// done, the channel is closed afterwards.
type Subscription struct {
	msgType    wire.EMsg
	ch         chan *wire.Envelope
	dispatcher *dispatcher
}

// C returns the delivery channel. It is closed when the subscription is
// cancelled or the client shuts down.
func (s *Subscription) C() <-chan *wire.Envelope {
	return s.ch
}

// Cancel detaches the subscription and closes its channel. Cancelling
// twice is fine.
func (s *Subscription) Cancel() {
	s.dispatcher.remove(s)
}

// dispatcher fans inbound messages out to subscribers by message type.
// Subscriptions survive reconnects, they belong to the client, not to any
// single connection.
type dispatcher struct {
	queueSize int

	mu   sync.Mutex
	subs map[wire.EMsg][]*Subscription
}

func newDispatcher(queueSize int) *dispatcher {
	return &dispatcher{
		queueSize: queueSize,
		subs:      map[wire.EMsg][]*Subscription{},
	}
}

func (d *dispatcher) Subscribe(msgType wire.EMsg) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := &Subscription{
		msgType:    msgType,
		ch:         make(chan *wire.Envelope, d.queueSize),
		dispatcher: d,
	}
	d.subs[msgType] = append(d.subs[msgType], s)
	return s
}

func (d *dispatcher) remove(s *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	byType := d.subs[s.msgType]
	for i, registered := range byType {
		if registered != s {
			continue
		}
		byType = append(byType[:i], byType[i+1:]...)
		if len(byType) == 0 {
			delete(d.subs, s.msgType)
		} else {
			d.subs[s.msgType] = byType
		}
		close(s.ch)
		return
	}
}

// dispatch delivers the envelope to the subscribers of its type in the
// order they subscribed. Slow subscribers lose messages instead of stalling
// the read loop; the number of messages dropped that way is returned.
func (d *dispatcher) dispatch(env *wire.Envelope) (delivered, dropped int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range d.subs[env.Type] {
		select {
		case s.ch <- env:
			delivered++
		default:
			dropped++
		}
	}
	return delivered, dropped
}

// closeAll cancels every subscription. Called once when the client stops
// for good so ranges over subscription channels terminate.
func (d *dispatcher) closeAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for msgType, byType := range d.subs {
		for _, s := range byType {
			close(s.ch)
		}
		delete(d.subs, msgType)
	}
}
