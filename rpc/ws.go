package rpc

import (
	"context"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"linkstake/core/events"
	"linkstake/core/types"
)

const (
	wsWriteTimeout    = 10 * time.Second
	subscriberBacklog = 64
)

// EventHub fans engine events out to websocket subscribers. A subscriber that
// cannot keep up has its oldest pending events dropped rather than blocking
// the engine's emit path.
type EventHub struct {
	mu   sync.Mutex
	subs map[chan *types.Event]struct{}
}

func newEventHub() *EventHub {
	return &EventHub{subs: make(map[chan *types.Event]struct{})}
}

// Emit implements events.Emitter.
func (h *EventHub) Emit(evt events.Event) {
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	payload := carrier.Event()
	if payload == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub <- payload.Clone():
		default:
			select {
			case <-sub:
			default:
			}
			select {
			case sub <- payload.Clone():
			default:
			}
		}
	}
}

func (h *EventHub) subscribe() (chan *types.Event, func()) {
	sub := make(chan *types.Event, subscriberBacklog)
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
	}
	return sub, cancel
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if authErr := s.requireAuth(r); authErr != nil {
		http.Error(w, authErr.Error(), http.StatusUnauthorized)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	if err := s.streamEvents(r.Context(), conn); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn) error {
	sub, cancel := s.hub.subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-sub:
			writeCtx, done := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(writeCtx, conn, evt)
			done()
			if err != nil {
				return err
			}
		}
	}
}
