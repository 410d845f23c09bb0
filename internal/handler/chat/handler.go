package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/claude-code-chat/backend/internal/config"
	"github.com/zhouzirui/claude-code-chat/backend/internal/model/stream"
	"github.com/zhouzirui/claude-code-chat/backend/internal/service/agent"
	"github.com/zhouzirui/claude-code-chat/backend/internal/service/conversation"
	"github.com/zhouzirui/claude-code-chat/backend/pkg/utils"
)

// Conversation runs chat turns.
type Conversation interface {
	Send(ctx context.Context, sessionID, message string) (conversation.Reply, error)
	Stream(ctx context.Context, sessionID, message string, pub agent.Publisher) (conversation.Reply, error)
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	conv     Conversation
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// New 创建聊天处理器；cors 决定哪些来源可以建立 WebSocket 连接
func New(conv Conversation, cors config.CORSConfig, logger *log.Logger) *Handler {
	return &Handler{
		conv:     conv,
		logger:   logger.WithPrefix("chat"),
		upgrader: newUpgrader(cors),
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/chat/stream", h.handleStream)
	r.Get("/chat/ws", h.handleWebSocket)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response  string    `json:"response"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

func decodeChatRequest(r *http.Request) (chatRequest, error) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return chatRequest{}, fmt.Errorf("invalid request body: %w", err)
	}
	return req, nil
}

// handleChat 一次性返回完整回复
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	reply, err := h.conv.Send(context.WithoutCancel(r.Context()), req.SessionID, req.Message)
	if err != nil {
		h.logger.Error("chat failed", "err", err)
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, chatResponse{
		Response:  reply.Text,
		SessionID: reply.SessionID,
		Timestamp: reply.Timestamp,
	})
}

// handleStream 以 SSE 推送事件，最后一帧固定为 [DONE]
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	pub := newSSEPublisher(w, flusher, h.logger)
	defer pub.Done()

	// the agent keeps running if the client goes away; its reply still lands in history
	reply, err := h.conv.Stream(context.WithoutCancel(r.Context()), req.SessionID, req.Message, pub)
	if err != nil {
		h.logger.Error("stream failed", "err", err)
		pub.Publish(stream.Event{Type: stream.EventError, Message: err.Error(), Error: err.Error(), SessionID: req.SessionID})
		return
	}
	h.logger.Debug("stream finished", "session", reply.SessionID, "outcome", reply.Outcome, "dropped", pub.Dropped())
}
