// Package sse fans controller snapshots out to connected event-stream
// clients.
package sse

import (
	"sync/atomic"

	"github.com/starford/casedeck/internal/controller"
)

// Hub is a controller.View that delivers every snapshot to each
// subscriber.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable
// state (clients + latest snapshot). Public methods communicate with this
// loop through channels, so no mutexes are required.
//
// Subscriber channels hold one snapshot. A slow client never blocks the
// loop; it simply skips to the newest snapshot, since each one carries the
// complete state.
type Hub struct {
	subscribeCh   chan chan controller.Snapshot
	unsubscribeCh chan chan controller.Snapshot
	publishCh     chan controller.Snapshot
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewHub starts a hub. Clients that subscribe before the first snapshot
// receive initial.
func NewHub(initial controller.Snapshot) *Hub {
	h := &Hub{
		subscribeCh:   make(chan chan controller.Snapshot),
		unsubscribeCh: make(chan chan controller.Snapshot),
		publishCh:     make(chan controller.Snapshot, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go h.run(initial)
	return h
}

func (h *Hub) run(latest controller.Snapshot) {
	defer close(h.stopped)

	clients := make(map[chan controller.Snapshot]struct{})

	deliver := func(ch chan controller.Snapshot, s controller.Snapshot) {
		select {
		case ch <- s:
			return
		default:
		}
		// Replace the unread snapshot. Only this loop sends, so the
		// second send always finds room.
		select {
		case <-ch:
		default:
		}
		ch <- s
	}

	for {
		select {
		case <-h.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-h.subscribeCh:
			clients[ch] = struct{}{}
			deliver(ch, latest)

		case ch := <-h.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case s := <-h.publishCh:
			if s.Version < latest.Version {
				continue
			}
			latest = s
			for ch := range clients {
				deliver(ch, s)
			}

		case resp := <-h.countReqCh:
			resp <- len(clients)
		}
	}
}

// Render implements controller.View.
func (h *Hub) Render(s controller.Snapshot) {
	if h.closed.Load() {
		return
	}
	select {
	case h.publishCh <- s:
	case <-h.stopped:
	}
}

// Close gracefully stops hub loop and closes all client channels.
func (h *Hub) Close() {
	if h.closed.CompareAndSwap(false, true) {
		close(h.stopCh)
	}
	<-h.stopped
}

// Subscribe adds a new client. The channel immediately holds the latest
// snapshot.
func (h *Hub) Subscribe() chan controller.Snapshot {
	ch := make(chan controller.Snapshot, 1)
	if h.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case h.subscribeCh <- ch:
	case <-h.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (h *Hub) Unsubscribe(ch chan controller.Snapshot) {
	if h.closed.Load() {
		return
	}
	select {
	case h.unsubscribeCh <- ch:
	case <-h.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	if h.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case h.countReqCh <- resp:
	case <-h.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-h.stopped:
		return 0
	}
}
