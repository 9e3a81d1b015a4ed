package mockapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event types
const (
	EventInserted = "inserted"
	EventUpdated  = "updated"
	EventReplaced = "replaced"
	EventDeleted  = "deleted"
	EventDropped  = "dropped"
	EventSchemas  = "schemas"
)

// EventsPath is where the change feed is served
const EventsPath = "/_events"

// Event is one change of the backend data or of its schemas
type Event struct {
	Type      string `json:"type"`
	Resource  string `json:"resource,omitempty"`
	ID        string `json:"id,omitempty"`
	ETag      string `json:"etag,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Feed broadcasts events to websocket subscribers. A subscriber may
// narrow the feed to one resource with the resource query parameter.
type Feed struct {
	logger      *zap.Logger
	connections map[*websocket.Conn]string
	broadcast   chan Event
	register    chan subscription
	unregister  chan *websocket.Conn
	done        chan struct{}
	closeOnce   sync.Once
	mutex       sync.RWMutex
	upgrader    websocket.Upgrader
}

type subscription struct {
	conn     *websocket.Conn
	resource string
}

// NewFeed creates a feed and starts its broadcast loop
func NewFeed(logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Feed{
		logger:      logger,
		connections: make(map[*websocket.Conn]string),
		broadcast:   make(chan Event, 256),
		register:    make(chan subscription),
		unregister:  make(chan *websocket.Conn),
		done:        make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	go f.run()
	return f
}

func (f *Feed) run() {
	for {
		select {
		case <-f.done:
			return

		case sub := <-f.register:
			f.mutex.Lock()
			f.connections[sub.conn] = sub.resource
			f.mutex.Unlock()
			f.logger.Debug("event subscriber connected", zap.Int("subscribers", f.Count()))

		case conn := <-f.unregister:
			f.mutex.Lock()
			if _, ok := f.connections[conn]; ok {
				delete(f.connections, conn)
				conn.Close()
			}
			f.mutex.Unlock()
			f.logger.Debug("event subscriber disconnected", zap.Int("subscribers", f.Count()))

		case e := <-f.broadcast:
			f.sendToAll(e)
		}
	}
}

// sendToAll runs on the broadcast loop only, which keeps a single writer
// per connection
func (f *Feed) sendToAll(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		f.logger.Error("failed to encode event", zap.Error(err))
		return
	}

	f.mutex.RLock()
	var failed []*websocket.Conn
	for conn, resource := range f.connections {
		if resource != "" && e.Resource != "" && resource != e.Resource {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			failed = append(failed, conn)
		}
	}
	f.mutex.RUnlock()

	if len(failed) > 0 {
		f.mutex.Lock()
		for _, conn := range failed {
			if _, ok := f.connections[conn]; ok {
				conn.Close()
				delete(f.connections, conn)
			}
		}
		f.mutex.Unlock()
	}
}

// Publish queues e for every subscriber. Events are dropped when the queue
// is full or the feed is closed.
func (f *Feed) Publish(e Event) {
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().Unix()
	}
	select {
	case <-f.done:
	case f.broadcast <- e:
	default:
		f.logger.Warn("event queue full, dropping event", zap.String("type", e.Type))
	}
}

// ServeHTTP upgrades the request to a websocket subscription
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Debug("event subscription rejected", zap.Error(err))
		return
	}

	select {
	case f.register <- subscription{conn: conn, resource: r.URL.Query().Get("resource")}:
	case <-f.done:
		conn.Close()
		return
	}
	go f.readMessages(conn)
}

// readMessages drains the connection so that close frames are seen
func (f *Feed) readMessages(conn *websocket.Conn) {
	defer func() {
		select {
		case f.unregister <- conn:
		case <-f.done:
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.logger.Debug("event subscriber error", zap.Error(err))
			}
			return
		}
	}
}

// Count returns the number of subscribers
func (f *Feed) Count() int {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return len(f.connections)
}

// Close disconnects every subscriber and stops the broadcast loop
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		close(f.done)

		f.mutex.Lock()
		defer f.mutex.Unlock()
		for conn := range f.connections {
			conn.Close()
		}
		f.connections = make(map[*websocket.Conn]string)
	})
}

// EventsURL turns a backend endpoint into the URL of its change feed
func EventsURL(endpoint, resource string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + EventsPath
	u.RawQuery = ""
	if resource != "" {
		u.RawQuery = url.Values{"resource": {resource}}.Encode()
	}
	return u.String(), nil
}

// Subscribe reads the change feed at rawURL and calls fn for every event
// until ctx is canceled or the backend closes the feed
func Subscribe(ctx context.Context, rawURL string, header http.Header, fn func(Event)) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("subscribe to %s: %s", rawURL, resp.Status)
		}
		return fmt.Errorf("subscribe to %s: %w", rawURL, err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		var e Event
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		fn(e)
	}
}
