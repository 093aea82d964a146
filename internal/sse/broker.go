// Package sse pushes notification, editor and project events to browser
// clients over Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/verbas/internal/notify"
)

// Event types.
const (
	EventNotificationShown  = "notification.shown"
	EventNotificationHidden = "notification.hidden"
	EventEditorReady        = "editor.ready"
	EventProjectLoaded      = "project.loaded"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

var keepAliveFrame = []byte(": keep-alive\n\n")

// frame is an encoded event.
type frame struct {
	typ string
	raw []byte
}

type client struct {
	ch    chan []byte
	types map[string]bool // nil accepts every type
}

func (c *client) wants(typ string) bool {
	return c.types == nil || c.types[typ]
}

type subscription struct {
	ch    chan []byte
	types []string
}

// Broker fans events out to SSE clients. A client connecting late first
// receives the state it missed: the visible notification, the loaded
// project and the last editor.ready.
//
// A single loop goroutine owns the clients and the replay state; public
// methods talk to it over channels.
type Broker struct {
	keepAlive time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

var _ notify.Sink = (*Broker)(nil)

// NewBroker creates a broker that sends a keep-alive comment to every
// client at the given interval.
func NewBroker(keepAlive time.Duration) *Broker {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}

	b := &Broker{
		keepAlive:     keepAlive,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]*client)
	ticker := time.NewTicker(b.keepAlive)
	defer ticker.Stop()

	var (
		seq uint64
		// Replay state, in delivery order.
		project, editor, notification *frame
	)

	deliver := func(c *client, f *frame) {
		if f == nil || !c.wants(f.typ) {
			return
		}
		select {
		case c.ch <- f.raw:
		default:
			// Client buffer full; skip to avoid blocking broker loop.
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			c := &client{ch: sub.ch}
			if len(sub.types) > 0 {
				c.types = make(map[string]bool, len(sub.types))
				for _, t := range sub.types {
					c.types[t] = true
				}
			}
			clients[sub.ch] = c
			deliver(c, project)
			deliver(c, editor)
			deliver(c, notification)

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			payload, err := json.Marshal(event.Data)
			if err != nil {
				continue
			}
			seq++
			f := &frame{
				typ: event.Type,
				raw: []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload)),
			}
			switch event.Type {
			case EventProjectLoaded:
				project = f
			case EventEditorReady:
				editor = f
			case EventNotificationShown:
				notification = f
			case EventNotificationHidden:
				notification = nil
			}
			for _, c := range clients {
				deliver(c, f)
			}

		case <-ticker.C:
			for _, c := range clients {
				select {
				case c.ch <- keepAliveFrame:
				default:
				}
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client receiving the given event types, or every type
// when none are given, and returns its channel.
func (b *Broker) Subscribe(types ...string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, types: types}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// Shown publishes notification.shown.
func (b *Broker) Shown(n notify.Notification) {
	b.Publish(Event{Type: EventNotificationShown, Data: n})
}

// Hidden publishes notification.hidden.
func (b *Broker) Hidden(n notify.Notification) {
	b.Publish(Event{Type: EventNotificationHidden, Data: n})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The optional
// types query parameter is a comma separated list of event types.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var types []string
	for _, t := range strings.Split(r.URL.Query().Get("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(types...)
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
