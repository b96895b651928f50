package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"slices"
	"sync"

	"github.com/atvirokodosprendimai/inventory/internal/actions"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"
)

// Registration narrows the events a watcher receives. An empty list means every action.
type Registration struct {
	Actions []string `json:"actions"`
}

// Hub streams action completion events to websocket watchers.
type Hub struct {
	mu    sync.Mutex
	conns []*watcher
	log   *zap.Logger
}

var (
	_ http.Handler    = (*Hub)(nil)
	_ actions.Handler = (*Hub)(nil)
)

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log.Named("events")}
}

type watcher struct {
	hub  *Hub
	conn net.Conn

	mu  sync.Mutex
	reg Registration
}

func (w *watcher) wants(actionID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.reg.Actions) == 0 || slices.Contains(w.reg.Actions, actionID)
}

func (w *watcher) send(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return wsutil.WriteServerMessage(w.conn, ws.OpText, data)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &watcher{hub: h, conn: conn}
	h.add(c)
	h.log.Debug("watcher connected", zap.String("remote", conn.RemoteAddr().String()))
	defer h.remove(c)

	for {
		msg, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			return
		}
		if op != ws.OpText {
			continue
		}
		var reg Registration
		if err := json.Unmarshal(msg, &reg); err != nil {
			data, _ := json.Marshal(map[string]string{"error": "invalid registration"})
			_ = c.send(data)
			continue
		}
		c.mu.Lock()
		c.reg = reg
		c.mu.Unlock()
	}
}

// HandleActionCompleted fans an event out to every interested watcher. A watcher that
// cannot be written to is dropped.
func (h *Hub) HandleActionCompleted(_ context.Context, event actions.ActionCompletedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	h.mu.Lock()
	conns := slices.Clone(h.conns)
	h.mu.Unlock()

	for _, c := range conns {
		if !c.wants(event.ActionID) {
			continue
		}
		if err := c.send(data); err != nil {
			h.log.Debug("cannot send event, closing watcher", zap.Error(err))
			h.remove(c)
		}
	}
	return nil
}

func (h *Hub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) add(c *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns = append(h.conns, c)
}

func (h *Hub) remove(c *watcher) {
	h.mu.Lock()
	h.conns = slices.DeleteFunc(h.conns, func(x *watcher) bool { return x == c })
	h.mu.Unlock()
	_ = c.conn.Close()
}

// Close disconnects every watcher.
func (h *Hub) Close() error {
	h.mu.Lock()
	conns := slices.Clone(h.conns)
	h.mu.Unlock()
	for _, c := range conns {
		h.remove(c)
	}
	return nil
}
