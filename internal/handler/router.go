package handler

import (
	"io/fs"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/claude-code-chat/backend/internal/config"
	"github.com/zhouzirui/claude-code-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/claude-code-chat/backend/internal/handler/directory"
	middlewarePkg "github.com/zhouzirui/claude-code-chat/backend/internal/middleware"
	"github.com/zhouzirui/claude-code-chat/backend/pkg/utils"
	"github.com/zhouzirui/claude-code-chat/backend/web"
)

// Stats feeds the health endpoint.
type Stats interface {
	Len() int
}

// Anomalies reports undecodable agent output lines.
type Anomalies interface {
	Anomalies() int64
}

// Deps carries everything the router needs; it is built once in main.
type Deps struct {
	Config     *config.Config
	Logger     *log.Logger
	Instance   string
	Sessions   Stats
	Agent      Anomalies
	Chat       chat.Conversation
	Directory  directory.Manager
	StaticRoot fs.FS
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.Config.CORS))

	chatHandler := chat.New(deps.Chat, deps.Config.CORS, deps.Logger)
	directoryHandler := directory.New(deps.Directory, deps.Logger)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":           "ok",
				"sessions":         deps.Sessions.Len(),
				"instance":         deps.Instance,
				"decode_anomalies": deps.Agent.Anomalies(),
			})
		})

		chatHandler.RegisterRoutes(api)
		directoryHandler.RegisterRoutes(api)
	})

	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	static := deps.StaticRoot
	if static == nil {
		static = staticFS(deps.Config.Server.StaticDir, deps.Logger)
	}
	page := func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, static, "index.html")
	}
	r.Get("/", page)
	r.Get("/claude_chat.html", page)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

	return r
}

// staticFS prefers STATIC_DIR when it exists and falls back to the embedded page.
func staticFS(dir string, logger *log.Logger) fs.FS {
	if dir == "" {
		return web.Static()
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		logger.Warn("static dir unavailable, using embedded page", "dir", dir, "err", err)
		return web.Static()
	}
	return os.DirFS(dir)
}
