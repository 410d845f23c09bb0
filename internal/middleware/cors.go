package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/zhouzirui/claude-code-chat/backend/internal/config"
)

// CORS 返回跨域中间件；关闭时原样放行
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.Origins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		MaxAge:         300,
	})
}

