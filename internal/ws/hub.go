package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rishabhdvn/Secure-Collab/internal/session"
	"github.com/rishabhdvn/Secure-Collab/pkg/metrics"
)

// Runner is the execution side of a connection's lifecycle: program input
// forwarding and job teardown on disconnect. The exec Supervisor
// implements it.
type Runner interface {
	ForwardInput(connID, text string)
	OnDisconnect(connID string)
}

// Hub owns the live connections and routes inbound events to the session
// registry, the broadcast path, and the runner. One read loop per
// connection keeps that connection's events in arrival order.
type Hub struct {
	log    *slog.Logger
	reg    *session.Registry
	runner Runner
	bus    *Bus // nil when running single-instance

	mu    sync.RWMutex
	conns map[string]*Conn // by socket ID
}

// NewHub wires the hub to the registry, runner, and optional bus
func NewHub(logger *slog.Logger, reg *session.Registry, runner Runner, bus *Bus) *Hub {
	return &Hub{log: logger, reg: reg, runner: runner, bus: bus, conns: map[string]*Conn{}}
}

// Run forwards bus traffic from other instances into local rooms
func (h *Hub) Run(ctx context.Context) {
	if h.bus != nil {
		go h.bus.Subscribe(ctx, func(msg BusMessage) {
			if msg.Target != "" {
				h.sendTo(msg.Target, msg.Payload)
				return
			}
			h.deliverRoom(msg.RoomID, msg.Except, msg.Payload)
		})
	}
	<-ctx.Done()
}

// ServeWS handles a new /ws connection for its whole lifetime
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := Accept(w, r)
	if err != nil {
		h.log.Error("ws.accept", "err", err)
		return
	}

	c := NewConn(conn, uuid.NewString())
	h.mu.Lock()
	h.conns[c.ID()] = c
	h.mu.Unlock()
	metrics.ConnectionsOpen.Inc()

	// Outbound writer
	go c.WriteLoop(ctx)

	// Tell the client its socket ID; it echoes it back on /compile
	c.Send(marshal(Event{Event: EventConnected, SocketID: c.ID()}))

	// Inbound reader, one event at a time
	for {
		data, ok := c.Read(ctx)
		if !ok {
			break
		}
		h.dispatch(ctx, c, data)
	}

	h.disconnect(c)
	_ = c.Close()
}

func (h *Hub) dispatch(ctx context.Context, c *Conn, data []byte) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		h.log.Debug("ws.badframe", "conn", c.ID(), "err", err)
		return
	}

	switch e.Event {
	case EventJoin:
		if e.RoomID == "" || e.Username == "" {
			h.log.Warn("ws.join.invalid", "conn", c.ID())
			return
		}
		roster := h.reg.Join(c.ID(), e.RoomID, e.Username)
		payload := marshal(Event{
			Event:    EventJoined,
			Clients:  roster,
			Username: e.Username,
			SocketID: c.ID(),
		})
		// Everyone in the room gets the new roster, joiner included
		h.deliverRoom(e.RoomID, "", payload)
		h.publish(ctx, BusMessage{RoomID: e.RoomID, Payload: payload})
		metrics.EventsRelayed.WithLabelValues(EventJoined).Inc()
		metrics.RoomsActive.Set(float64(h.reg.RoomCount()))

	case EventCodeChange:
		if e.RoomID == "" {
			return
		}
		payload := marshal(Event{Event: EventCodeChange, Code: e.Code})
		// Never echo back to the sender
		h.deliverRoom(e.RoomID, c.ID(), payload)
		h.publish(ctx, BusMessage{RoomID: e.RoomID, Except: c.ID(), Payload: payload})
		metrics.EventsRelayed.WithLabelValues(EventCodeChange).Inc()

	case EventSyncCode:
		// An existing member pushes the current buffer to a named late joiner
		if e.SocketID == "" {
			return
		}
		payload := marshal(Event{Event: EventSyncCode, Code: e.Code})
		if !h.sendTo(e.SocketID, payload) {
			roomKey, _ := h.reg.RoomOf(c.ID())
			h.publish(ctx, BusMessage{RoomID: roomKey, Target: e.SocketID, Payload: payload})
		}
		metrics.EventsRelayed.WithLabelValues(EventSyncCode).Inc()

	case EventProgramInput:
		h.runner.ForwardInput(c.ID(), e.Input)

	default:
		h.log.Debug("ws.unknown", "conn", c.ID(), "event", e.Event)
	}
}

// disconnect runs the leave path once the read loop ends: registry
// removal, a disconnected notice to the vacated rooms, and job teardown.
func (h *Hub) disconnect(c *Conn) {
	// The request context died with the socket; publishes here need their own.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rooms, username := h.reg.Leave(c.ID())
	payload := marshal(Event{Event: EventDisconnected, SocketID: c.ID(), Username: username})
	for _, roomKey := range rooms {
		h.deliverRoom(roomKey, c.ID(), payload)
		h.publish(ctx, BusMessage{RoomID: roomKey, Except: c.ID(), Payload: payload})
		metrics.EventsRelayed.WithLabelValues(EventDisconnected).Inc()
	}

	h.runner.OnDisconnect(c.ID())

	h.mu.Lock()
	delete(h.conns, c.ID())
	h.mu.Unlock()
	metrics.ConnectionsOpen.Dec()
	metrics.RoomsActive.Set(float64(h.reg.RoomCount()))
	h.log.Info("ws.disconnected", "conn", c.ID(), "username", username)
}

// SendOutput delivers a program-output event to the owning connection.
// A connection that is already gone just drops the event.
func (h *Hub) SendOutput(connID, output string) {
	h.sendTo(connID, marshal(Event{Event: EventProgramOutput, Output: output}))
	metrics.EventsRelayed.WithLabelValues(EventProgramOutput).Inc()
}

// deliverRoom fans a payload out to the room's local members, skipping
// exceptID when set.
func (h *Hub) deliverRoom(roomKey, exceptID string, payload []byte) {
	for _, m := range h.reg.Members(roomKey) {
		if m.SocketID == exceptID {
			continue
		}
		h.sendTo(m.SocketID, payload)
	}
}

func (h *Hub) sendTo(connID string, payload []byte) bool {
	h.mu.RLock()
	c := h.conns[connID]
	h.mu.RUnlock()
	if c == nil {
		return false
	}
	c.Send(payload)
	return true
}

func (h *Hub) publish(ctx context.Context, msg BusMessage) {
	if h.bus == nil {
		return
	}
	if err := h.bus.Publish(ctx, msg); err != nil {
		h.log.Warn("bus.publish", "room", msg.RoomID, "err", err)
	}
}
