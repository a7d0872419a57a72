// http собирает REST-роутер сервиса аутентификации.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pribylovaa/coldcall-auth/internal/cache"
	"github.com/pribylovaa/coldcall-auth/internal/http/handlers"
	"github.com/pribylovaa/coldcall-auth/internal/http/middleware"
	"github.com/pribylovaa/coldcall-auth/internal/metrics"
	"github.com/pribylovaa/coldcall-auth/internal/security"
)

// Options - параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api"; если пустой - роуты регистрируются на корне.

	// TrustProxy включает chi RealIP: адрес клиента берётся из X-Forwarded-For.
	TrustProxy     bool
	AllowedOrigins []string

	Metrics      *metrics.Metrics // может быть nil
	LoginLimiter cache.Limiter    // nil - без ограничения частоты входа
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(h *handlers.Handlers, verifier middleware.AccessVerifier, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(), // до логирования
		middleware.Logging(opts.Logger),
	)
	if opts.TrustProxy {
		root.Use(chimw.RealIP)
	}
	if len(opts.AllowedOrigins) > 0 {
		root.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", security.CSRFHeader, middleware.HeaderRequestID},
			ExposedHeaders:   []string{middleware.HeaderRequestID, "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if opts.Metrics != nil {
		root.Use(middleware.Metrics(opts.Metrics))
	}
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	routes := func(r chi.Router) {
		registerRoutes(r, h, verifier, opts.LoginLimiter)
	}

	if opts.BasePath != "" {
		root.Route(opts.BasePath, routes)
		return root
	}

	routes(root)
	return root
}

// registerRoutes - единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, verifier middleware.AccessVerifier, limiter cache.Limiter) {
	authed := middleware.RequireAuth(verifier)
	csrf := middleware.RequireCSRF()

	// auth
	r.Post("/auth/register", h.Register)
	r.With(loginGate(limiter)...).Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)
	r.With(authed, csrf).Post("/auth/logout-all", h.LogoutAll)

	// защищённые ресурсы
	r.With(authed).Get("/me", h.Me)
	r.With(authed, csrf).Post("/secure-action", h.SecureAction)
}

func loginGate(limiter cache.Limiter) []func(http.Handler) http.Handler {
	if limiter == nil {
		return nil
	}

	return []func(http.Handler) http.Handler{middleware.RateLimit(limiter, nil)}
}
