package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/claude-code-chat/backend/internal/config"
	"github.com/zhouzirui/claude-code-chat/backend/internal/model/stream"
)

func newUpgrader(cors config.CORSConfig) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(cors, r)
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// originAllowed accepts non-browser clients, same-origin pages and the
// configured origins. With CORS disabled only same-origin pages get in.
func originAllowed(cors config.CORSConfig, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	if !cors.Enabled {
		return false
	}
	for _, allowed := range cors.Origins() {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// handleWebSocket 每收到一帧消息就执行一次流式调用，事件与 SSE 相同，结束时发送 done
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	sessionID := r.URL.Query().Get("session_id")
	h.logger.Info("websocket connected", "remote", r.RemoteAddr, "session", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws := &wsConn{conn: conn, logger: h.logger}
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	go h.pingLoop(ctx, ws)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error", "err", err)
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			ws.writeJSON(stream.Event{Type: stream.EventError, Message: "invalid message: " + err.Error(), SessionID: sessionID})
			continue
		}
		if req.SessionID == "" {
			req.SessionID = sessionID
		}

		reply, err := h.conv.Stream(context.WithoutCancel(ctx), req.SessionID, req.Message, ws)
		if err != nil {
			h.logger.Error("websocket stream failed", "err", err)
			ws.writeJSON(stream.Event{Type: stream.EventError, Message: err.Error(), Error: err.Error(), SessionID: req.SessionID})
		} else {
			sessionID = reply.SessionID
		}
		ws.writeJSON(stream.Event{Type: stream.EventDone, SessionID: sessionID})

		// pongs are only processed while reading
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	}
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, ws *wsConn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.ping(); err != nil {
				return
			}
		}
	}
}
