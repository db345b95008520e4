package steam

import "sync/atomic"

// Stats is a point-in-time snapshot of the client counters.
type Stats struct {
	// MessagesSent and MessagesReceived count envelopes, including the
	// ones unpacked from batch containers.
	MessagesSent     uint64
	MessagesReceived uint64

	// BytesSent and BytesReceived count whole frames as they cross the
	// wire, encryption and compression included.
	BytesSent     uint64
	BytesReceived uint64

	// Reconnects counts sessions lost after Run started.
	Reconnects uint64

	// ResponsesDropped counts responses that arrived after their job
	// expired. EventsDropped counts messages lost to slow subscribers.
	ResponsesDropped uint64
	EventsDropped    uint64
}

type statsCollector struct {
	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
	bytesSent        atomic.Uint64
	bytesReceived    atomic.Uint64
	reconnects       atomic.Uint64
	responsesDropped atomic.Uint64
	eventsDropped    atomic.Uint64
}

func (c *statsCollector) snapshot() Stats {
	return Stats{
		MessagesSent:     c.messagesSent.Load(),
		MessagesReceived: c.messagesReceived.Load(),
		BytesSent:        c.bytesSent.Load(),
		BytesReceived:    c.bytesReceived.Load(),
		Reconnects:       c.reconnects.Load(),
		ResponsesDropped: c.responsesDropped.Load(),
		EventsDropped:    c.eventsDropped.Load(),
	}
}
