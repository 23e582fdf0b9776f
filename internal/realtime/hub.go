// Package realtime pushes live snapshots to websocket clients: a customer's
// orders with their countdown, the menu, and the kitchen dashboard.
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"smartserve/internal/auth"
	"smartserve/internal/models"
	"smartserve/internal/ordering"
	"smartserve/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Frame kinds
const (
	FrameOrders  = "orders"
	FrameMenu    = "menu"
	FrameKitchen = "kitchen"
	FrameError   = "error"
)

// Frame is one message sent to a client. Version is the store version the
// data was rendered from; tick frames repeat it.
type Frame struct {
	Type    string      `json:"type"`
	Version uint64      `json:"version,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Hub serves the live feeds.
type Hub struct {
	svc     *ordering.Service
	tick    time.Duration
	ctx     context.Context
	stop    context.CancelFunc
	clients atomic.Int64
}

// NewHub creates a Hub. tick sets how often time-dependent frames are
// recomputed without a data change.
func NewHub(svc *ordering.Service, tick time.Duration) *Hub {
	if tick <= 0 {
		tick = time.Second
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Hub{svc: svc, tick: tick, ctx: ctx, stop: stop}
}

// Close ends every open feed.
func (h *Hub) Close() {
	h.stop()
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int64 {
	return h.clients.Load()
}

// HandleOrders streams the caller's orders. It must run behind
// auth.Middleware.
func (h *Hub) HandleOrders(c *gin.Context) {
	customerID := auth.CustomerID(c)
	h.serve(c, func(ctx context.Context, cl *client) error {
		sub, err := h.svc.SubscribeOrders(ctx, customerID)
		if err != nil {
			return err
		}
		ticker := time.NewTicker(h.tick)
		defer ticker.Stop()
		return follow(ctx, cl, FrameOrders, sub, ticker.C, func(_ context.Context, orders []models.Order) (interface{}, error) {
			return h.svc.BuildCustomerView(orders, h.svc.Now()), nil
		})
	})
}

// HandleMenu streams the catalog.
func (h *Hub) HandleMenu(c *gin.Context) {
	h.serve(c, func(ctx context.Context, cl *client) error {
		sub, err := h.svc.SubscribeMenu(ctx)
		if err != nil {
			return err
		}
		return follow(ctx, cl, FrameMenu, sub, nil, func(_ context.Context, menu []models.MenuItem) (interface{}, error) {
			return menu, nil
		})
	})
}

// HandleKitchen streams the kitchen dashboard, recomputed on every order
// change and every tick so lateness shows up without a write.
func (h *Hub) HandleKitchen(c *gin.Context) {
	h.serve(c, func(ctx context.Context, cl *client) error {
		sub, err := h.svc.SubscribeOrders(ctx, "")
		if err != nil {
			return err
		}
		ticker := time.NewTicker(h.tick)
		defer ticker.Stop()
		return follow(ctx, cl, FrameKitchen, sub, ticker.C, func(ctx context.Context, orders []models.Order) (interface{}, error) {
			manual, err := h.svc.ManualIncidents(ctx)
			if err != nil {
				return nil, err
			}
			return h.svc.BuildKitchenView(orders, manual, h.svc.Now()), nil
		})
	})
}

// serve upgrades the request and runs feed until the client goes away, the
// feed fails or the hub closes.
func (h *Hub) serve(c *gin.Context, feed func(ctx context.Context, cl *client) error) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	h.svc.Monitor().Set("realtime", "clients", h.clients.Add(1))
	defer func() {
		h.svc.Monitor().Set("realtime", "clients", h.clients.Add(-1))
	}()

	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()

	cl := &client{conn: conn, send: make(chan []byte, 16)}
	writerDone := make(chan struct{})
	go func() {
		cl.writePump()
		cancel()
		close(writerDone)
	}()
	go cl.readPump(cancel)

	if err := feed(ctx, cl); err != nil && ctx.Err() == nil {
		log.Printf("Live feed %s ended: %v", c.Request.URL.Path, err)
		cl.push(ctx, Frame{Type: FrameError, Error: err.Error()})
	}
	close(cl.send)
	<-writerDone
}

// follow renders every admitted snapshot, and re-renders the latest one on
// each tick. A nil tick disables re-rendering.
func follow[T any](ctx context.Context, cl *client, kind string, sub *store.Subscription[T], tick <-chan time.Time, render func(ctx context.Context, data T) (interface{}, error)) error {
	defer sub.Close()

	var (
		gate    store.Gate
		latest  T
		version uint64
		have    bool
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-sub.C():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				if err := sub.Err(); err != nil {
					return err
				}
				return store.ErrSubscriptionClosed
			}
			if !gate.Admit(snap.Version) {
				continue
			}
			latest, version, have = snap.Data, snap.Version, true
		case <-tick:
			if !have {
				continue
			}
		}

		data, err := render(ctx, latest)
		if err != nil {
			return err
		}
		if !cl.push(ctx, Frame{Type: kind, Version: version, Data: data}) {
			return nil
		}
	}
}

// client maintains the websocket connection
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// push queues a frame. It reports false once the connection is gone.
func (cl *client) push(ctx context.Context, f Frame) bool {
	data, err := json.Marshal(f)
	if err != nil {
		log.Printf("Error marshaling %s frame: %v", f.Type, err)
		return true
	}
	select {
	case cl.send <- data:
		return true
	case <-ctx.Done():
		return false
	}
}

// readPump discards client messages and watches for the connection closing
func (cl *client) readPump(cancel context.CancelFunc) {
	defer func() {
		cancel()
		cl.conn.Close()
	}()

	cl.conn.SetReadLimit(maxMessageSize)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

// writePump pumps frames to the connection and keeps it alive with pings
func (cl *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case message, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
