package presence

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is a single session lifecycle notification pushed to admin
// watchers: logins, logouts, forced takeovers, revocations.
type Event struct {
	Type      string    `json:"type"`
	AccountID int64     `json:"account_id"`
	At        time.Time `json:"at"`
}

var errWatcherGone = errors.New("watcher not registered")

// watcher wraps a connection with a write mutex. gorilla/websocket
// allows only one concurrent writer per connection, and both event
// broadcasts and keep-alive pings write to the same socket.
type watcher struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (w *watcher) writeJSON(v any) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteJSON(v)
}

func (w *watcher) ping() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteMessage(websocket.PingMessage, nil)
}

// Hub fans session events out to connected admin watchers. One
// connection per watcher; a reconnect replaces the old socket.
type Hub struct {
	watchers map[int64]*watcher
	mutex    sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		watchers: make(map[int64]*watcher),
	}
}

func (h *Hub) Register(watcherID int64, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if old, exists := h.watchers[watcherID]; exists && old != nil {
		_ = old.conn.Close()
	}

	h.watchers[watcherID] = &watcher{conn: conn}
}

func (h *Hub) Unregister(watcherID int64) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if w, exists := h.watchers[watcherID]; exists && w != nil {
		_ = w.conn.Close()
		delete(h.watchers, watcherID)
	}
}

func (h *Hub) WatcherCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.watchers)
}

// Ping sends a keep-alive ping to one watcher. Shares the connection's
// write mutex with broadcasts.
func (h *Hub) Ping(watcherID int64) error {
	h.mutex.RLock()
	w := h.watchers[watcherID]
	h.mutex.RUnlock()

	if w == nil {
		return errWatcherGone
	}
	return w.ping()
}

// SessionEvent broadcasts an event to every watcher. Dead connections
// are dropped on write failure.
func (h *Hub) SessionEvent(accountID int64, event string) {
	msg := Event{Type: event, AccountID: accountID, At: time.Now().UTC()}

	h.mutex.RLock()
	targets := make(map[int64]*watcher, len(h.watchers))
	for id, w := range h.watchers {
		targets[id] = w
	}
	h.mutex.RUnlock()

	for id, w := range targets {
		if w == nil {
			continue
		}
		if err := w.writeJSON(msg); err != nil {
			h.Unregister(id)
		}
	}
}

func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for id, w := range h.watchers {
		if w != nil {
			_ = w.conn.Close()
		}
		delete(h.watchers, id)
	}
}
