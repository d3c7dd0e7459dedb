package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ntpscope/ntpscope/pkg/api"
	"github.com/ntpscope/ntpscope/pkg/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// queueLen bounds the snapshots waiting for one client; a client that
	// falls further behind is dropped.
	queueLen = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 8192,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string               `json:"event"`
	Data  api.SnapshotResponse `json:"data"`
}

// Hub fans report snapshots out to WebSocket clients. The client set is
// owned by the Run loop; ServeHTTP only hands connections to it.
type Hub struct {
	store    *store.Store
	alerts   api.AlertSource
	interval time.Duration

	notify chan struct{}
	join   chan *client
	leave  chan *client
	done   chan struct{}
	count  atomic.Int32
}

type client struct {
	conn  *websocket.Conn
	queue chan *websocket.PreparedMessage
}

// New returns a Hub reading from st and al (al may be nil) that
// broadcasts every interval once Run is called.
func New(st *store.Store, al api.AlertSource, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		alerts:   al,
		interval: interval,
		notify:   make(chan struct{}, 1),
		join:     make(chan *client),
		leave:    make(chan *client),
		done:     make(chan struct{}),
	}
}

// Run owns the client set until ctx is cancelled, then closes every
// connection. It must be called once.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*client]struct{})
	drop := func(c *client) {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.queue)
			h.count.Store(int32(len(clients)))
		}
	}

	tick := time.NewTicker(h.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			for c := range clients {
				drop(c)
			}
			close(h.done)
			return

		case c := <-h.join:
			clients[c] = struct{}{}
			h.count.Store(int32(len(clients)))
			if msg := h.snapshot(); msg != nil {
				c.queue <- msg
			}
			slog.Debug("ws: client connected", "remote", c.conn.RemoteAddr().String(), "clients", len(clients))

		case c := <-h.leave:
			drop(c)

		case <-tick.C:
			h.broadcast(clients, drop)
		case <-h.notify:
			h.broadcast(clients, drop)
		}
	}
}

// Notify asks Run for an immediate broadcast. It never blocks, and calls
// made before the broadcast happens collapse into one.
func (h *Hub) Notify() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	return int(h.count.Load())
}

// ServeHTTP upgrades the request and serves the client until it
// disconnects or the hub stops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("ws: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	c := &client{conn: conn, queue: make(chan *websocket.PreparedMessage, queueLen)}

	select {
	case h.join <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.write()
	c.read()

	select {
	case h.leave <- c:
	case <-h.done:
	}
}

func (h *Hub) broadcast(clients map[*client]struct{}, drop func(*client)) {
	if len(clients) == 0 {
		return
	}
	msg := h.snapshot()
	if msg == nil {
		return
	}
	for c := range clients {
		select {
		case c.queue <- msg:
		default:
			slog.Warn("ws: dropping slow client", "remote", c.conn.RemoteAddr().String())
			drop(c)
		}
	}
}

// snapshot encodes the current store and alerts once for all clients.
func (h *Hub) snapshot() *websocket.PreparedMessage {
	data, err := json.Marshal(Message{Event: "snapshot", Data: api.BuildSnapshot(h.store, h.alerts)})
	if err != nil {
		slog.Warn("ws: encode snapshot", "err", err)
		return nil
	}
	msg, err := websocket.NewPreparedMessage(websocket.TextMessage, data)
	if err != nil {
		slog.Warn("ws: prepare snapshot", "err", err)
		return nil
	}
	return msg
}

// write drains the queue and keeps the connection alive with pings. A
// closed queue ends the connection with a close frame.
func (c *client) write() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.queue:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WritePreparedMessage(msg); err != nil {
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// read discards client frames; it exists to process pongs and detect
// disconnects.
func (c *client) read() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}
