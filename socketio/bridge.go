// Package socketio exposes the event hub to browsers over socket.io.
//
// Every connected client starts in GlobalRoom and receives the events of all
// runs, which is what the editor UI expects. A client that emits
// "subscribe" with an execution id leaves GlobalRoom and only receives that
// run's events; "unsubscribe" undoes it, and a client left with no
// subscriptions goes back to GlobalRoom.
package socketio

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/broadcast"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"
)

// GlobalRoom holds the clients that follow every run.
const GlobalRoom = "*"

// forwardBuffer is the bridge's queue on the hub.
const forwardBuffer = 1024

// emitFunc sends one event to the union of rooms.
type emitFunc func(rooms []string, event string, payload any) error

// Bridge forwards hub events to socket.io rooms.
type Bridge struct {
	io     *socket.Server
	hub    *broadcast.Hub
	logger *slog.Logger
	emit   emitFunc
}

// New creates a socket.io server wired to hub. Call Run to start forwarding.
// Any origin may connect; the editor is served from its own origin.
func New(hub *broadcast.Hub, logger *slog.Logger) *Bridge {
	opts := socket.DefaultServerOptions()
	opts.SetCors(&types.Cors{
		Origin:  "*",
		Methods: []string{"GET", "POST"},
	})
	io := socket.NewServer(nil, opts)
	b := &Bridge{
		io:     io,
		hub:    hub,
		logger: logger,
		emit: func(rooms []string, event string, payload any) error {
			targets := make([]socket.Room, 0, len(rooms))
			for _, r := range rooms {
				targets = append(targets, socket.Room(r))
			}
			return io.To(targets...).Emit(event, payload)
		},
	}
	io.On("connection", func(clients ...any) {
		client, ok := clients[0].(*socket.Socket)
		if !ok {
			return
		}
		b.onConnection(client)
	})
	return b
}

// Handler serves the socket.io endpoint; mount it at /socket.io/.
func (b *Bridge) Handler() http.Handler {
	return b.io.ServeHandler(nil)
}

// Run forwards events until ctx is done or the hub is closed.
func (b *Bridge) Run(ctx context.Context) {
	sub := b.hub.Subscribe(broadcast.AllTopics, forwardBuffer)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			b.forward(ev)
		}
	}
}

// Close disconnects every client.
func (b *Bridge) Close() {
	b.io.Close(nil)
}

func (b *Bridge) forward(ev flow.Event) {
	rooms := []string{GlobalRoom, ev.ExecutionID}
	if err := b.emit(rooms, string(ev.Kind), ev.Payload()); err != nil {
		b.logger.Warn("Failed to emit event", "executionId", ev.ExecutionID, "kind", ev.Kind, "error", err)
	}
}

func (b *Bridge) onConnection(client *socket.Socket) {
	logger := b.logger.With("sid", string(client.Id()))
	logger.Debug("Client connected")

	sub := newSubscriber(socketRooms{client})

	client.On("subscribe", func(args ...any) {
		if id, ok := executionID(args); ok {
			sub.subscribe(id)
			logger.Debug("Client subscribed", "executionId", id)
		}
	})
	client.On("unsubscribe", func(args ...any) {
		if id, ok := executionID(args); ok {
			sub.unsubscribe(id)
			logger.Debug("Client unsubscribed", "executionId", id)
		}
	})
	client.On("disconnect", func(args ...any) {
		logger.Debug("Client disconnected", "reason", args)
	})
}

func executionID(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	id, ok := args[0].(string)
	return id, ok && id != ""
}

// rooms is the part of a socket the subscription bookkeeping needs.
type rooms interface {
	Join(room string)
	Leave(room string)
}

type socketRooms struct{ s *socket.Socket }

func (r socketRooms) Join(room string)  { r.s.Join(socket.Room(room)) }
func (r socketRooms) Leave(room string) { r.s.Leave(socket.Room(room)) }

// subscriber tracks which runs one client follows.
type subscriber struct {
	mu    sync.Mutex
	rooms rooms
	runs  map[string]struct{}
}

func newSubscriber(r rooms) *subscriber {
	r.Join(GlobalRoom)
	return &subscriber{rooms: r, runs: make(map[string]struct{})}
}

func (s *subscriber) subscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; ok {
		return
	}
	if len(s.runs) == 0 {
		s.rooms.Leave(GlobalRoom)
	}
	s.runs[id] = struct{}{}
	s.rooms.Join(id)
}

func (s *subscriber) unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return
	}
	delete(s.runs, id)
	s.rooms.Leave(id)
	if len(s.runs) == 0 {
		s.rooms.Join(GlobalRoom)
	}
}
