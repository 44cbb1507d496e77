package inspect

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pulse-go/pulse/pkg/pulse"
)

// Event is one runtime occurrence on the wire.
type Event struct {
	Type      string `msgpack:"type"`
	ID        uint64 `msgpack:"id,omitempty"`
	Version   uint64 `msgpack:"version,omitempty"`
	Wave      int    `msgpack:"wave,omitempty"`
	Queued    int    `msgpack:"queued,omitempty"`
	Ran       int    `msgpack:"ran,omitempty"`
	ElapsedUS int64  `msgpack:"elapsed_us,omitempty"`
	Error     string `msgpack:"error,omitempty"`
	Timestamp int64  `msgpack:"ts"`
}

// Event type tags.
const (
	EventSignalWrite = "signal_write"
	EventRecompute   = "recompute"
	EventEffectRun   = "effect_run"
	EventFlushStart  = "flush_start"
	EventFlushEnd    = "flush_end"
	EventEffectPanic = "effect_panic"
)

// hub fans runtime events out to connected WebSocket clients. It registers
// itself as a pulse.Observer while clients are connected and detaches when
// the last one leaves.
type hub struct {
	config   HandlerConfig
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	events  chan Event
	dropped int

	closeOnce sync.Once
	closed    chan struct{}
}

func newHub(config HandlerConfig) *hub {
	return &hub{
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: config.CheckOrigin,
		},
		clients: make(map[*client]struct{}),
	}
}

func (h *hub) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.config.Logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		events: make(chan Event, h.config.EventBuffer),
		closed: make(chan struct{}),
	}
	h.addClient(c)
	h.config.Logger.Info("inspector client connected", "remote", conn.RemoteAddr())

	defer func() {
		h.removeClient(c)
		conn.Close()
		h.config.Logger.Info("inspector client disconnected",
			"remote", conn.RemoteAddr(), "dropped", c.dropped)
	}()

	// Drain incoming messages so close frames and pings are processed.
	go func() {
		defer c.close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseNormalClosure) {
					h.config.Logger.Debug("inspector read error", "error", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-c.closed:
			return
		case ev := <-c.events:
			msg, err := msgpack.Marshal(&ev)
			if err != nil {
				h.config.Logger.Error("event encode error", "error", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				h.config.Logger.Debug("inspector write error", "error", err)
				return
			}
		}
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (h *hub) addClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if len(h.clients) == 1 {
		pulse.AddObserver(h)
	}
}

func (h *hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	if len(h.clients) == 0 {
		pulse.RemoveObserver(h)
	}
}

// broadcast delivers without blocking. A full client buffer means the client
// cannot keep up; the event is dropped rather than stalling the runtime.
func (h *hub) broadcast(ev Event) {
	ev.Timestamp = time.Now().UnixMicro()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.events <- ev:
		default:
			c.dropped++
		}
	}
}

// SignalWrite implements pulse.Observer.
func (h *hub) SignalWrite(id, version uint64) {
	h.broadcast(Event{Type: EventSignalWrite, ID: id, Version: version})
}

// ComputedRecomputed implements pulse.Observer.
func (h *hub) ComputedRecomputed(id uint64) {
	h.broadcast(Event{Type: EventRecompute, ID: id})
}

// EffectRan implements pulse.Observer.
func (h *hub) EffectRan(id uint64) {
	h.broadcast(Event{Type: EventEffectRun, ID: id})
}

// FlushStart implements pulse.Observer.
func (h *hub) FlushStart(wave, queued int) {
	h.broadcast(Event{Type: EventFlushStart, Wave: wave, Queued: queued})
}

// FlushEnd implements pulse.Observer.
func (h *hub) FlushEnd(wave, ran int, elapsed time.Duration) {
	h.broadcast(Event{
		Type:      EventFlushEnd,
		Wave:      wave,
		Ran:       ran,
		ElapsedUS: elapsed.Microseconds(),
	})
}

// EffectPanicked implements pulse.Observer.
func (h *hub) EffectPanicked(id uint64, err error) {
	h.broadcast(Event{Type: EventEffectPanic, ID: id, Error: err.Error()})
}
