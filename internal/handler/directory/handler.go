package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	chatService "github.com/zhouzirui/claude-code-chat/backend/internal/service/chat"
	"github.com/zhouzirui/claude-code-chat/backend/internal/service/workspace"
	"github.com/zhouzirui/claude-code-chat/backend/pkg/utils"
)

// Manager changes and lists session working directories.
type Manager interface {
	Change(ctx context.Context, sessionID, path string) (workspace.ChangeResult, error)
	Info(ctx context.Context, sessionID string) (workspace.Info, error)
}

// Handler 目录相关的HTTP处理器
type Handler struct {
	manager Manager
	logger  *log.Logger
}

// New 创建目录处理器
func New(manager Manager, logger *log.Logger) *Handler {
	return &Handler{manager: manager, logger: logger.WithPrefix("directory")}
}

// RegisterRoutes 注册目录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/directory/change", h.handleChange)
	r.Post("/directory/info", h.handleInfo)
}

type changeResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	CurrentDirectory string `json:"current_directory"`
	SessionID        string `json:"session_id"`
}

type infoResponse struct {
	CurrentDirectory string           `json:"current_directory"`
	Items            []workspace.Item `json:"items"`
	SessionID        string           `json:"session_id"`
	Error            string           `json:"error,omitempty"`
}

// handleChange 切换会话工作目录
func (h *Handler) handleChange(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
		Path      string `json:"path"`
	}
	if err := decode(r, &payload); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sessionID := chatService.ResolveID(payload.SessionID)
	res, err := h.manager.Change(r.Context(), sessionID, payload.Path)
	if err != nil {
		h.logger.Error("directory change failed", "session", sessionID, "err", err)
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, changeResponse{
		Success:          res.Success,
		Message:          res.Message,
		CurrentDirectory: res.Directory,
		SessionID:        sessionID,
	})
}

// handleInfo 列出会话工作目录内容
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
	}
	if err := decode(r, &payload); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sessionID := chatService.ResolveID(payload.SessionID)
	info, err := h.manager.Info(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("directory info failed", "session", sessionID, "err", err)
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, infoResponse{
		CurrentDirectory: info.Directory,
		Items:            info.Items,
		SessionID:        sessionID,
		Error:            info.Error,
	})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
