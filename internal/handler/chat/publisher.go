package chat

import (
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/claude-code-chat/backend/internal/model/stream"
	"github.com/zhouzirui/claude-code-chat/backend/pkg/utils"
)

// ssePublisher writes events as SSE frames. After the first failed write it
// stops writing and only counts what it drops.
type ssePublisher struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *log.Logger
	broken  bool
	dropped int
}

func newSSEPublisher(w http.ResponseWriter, flusher http.Flusher, logger *log.Logger) *ssePublisher {
	return &ssePublisher{w: w, flusher: flusher, logger: logger}
}

func (p *ssePublisher) Publish(ev stream.Event) {
	p.write(func() error { return utils.WriteSSEData(p.w, p.flusher, ev) })
}

// Done emits the terminal sentinel.
func (p *ssePublisher) Done() {
	p.write(func() error { return utils.WriteSSEDone(p.w, p.flusher) })
}

func (p *ssePublisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

func (p *ssePublisher) write(fn func() error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.broken {
		p.dropped++
		return
	}
	if err := fn(); err != nil {
		p.broken = true
		p.dropped++
		p.logger.Warn("client went away, dropping remaining frames", "err", err)
	}
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

// wsConn serialises writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger *log.Logger
	broken bool
}

func (c *wsConn) writeJSON(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := c.conn.WriteJSON(v); err != nil {
		c.broken = true
		c.logger.Warn("websocket write failed, dropping remaining frames", "err", err)
	}
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// Publish makes wsConn an agent.Publisher.
func (c *wsConn) Publish(ev stream.Event) {
	c.writeJSON(ev)
}
