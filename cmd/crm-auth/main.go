package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pribylovaa/coldcall-auth/internal/cache"
	"github.com/pribylovaa/coldcall-auth/internal/config"
	authhttp "github.com/pribylovaa/coldcall-auth/internal/http"
	"github.com/pribylovaa/coldcall-auth/internal/http/handlers"
	"github.com/pribylovaa/coldcall-auth/internal/metrics"
	"github.com/pribylovaa/coldcall-auth/internal/pkg/log"
	"github.com/pribylovaa/coldcall-auth/internal/security"
	"github.com/pribylovaa/coldcall-auth/internal/service"
	"github.com/pribylovaa/coldcall-auth/internal/storage/postgres"
	"github.com/pribylovaa/coldcall-auth/internal/tokens"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	lg := log.New(cfg.Env, os.Stdout)
	slog.SetDefault(lg)
	lg.Info("starting crm-auth", "env", cfg.Env)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	codec, err := tokens.New(cfg.Auth)
	if err != nil {
		lg.Error("tokens_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	sameSite, err := security.ParseSameSite(cfg.Cookie.SameSite)
	if err != nil {
		lg.Error("cookie_policy_invalid", slog.String("err", err.Error()))
		os.Exit(1)
	}

	initCtx, initCancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer initCancel()

	st, err := postgres.New(initCtx, cfg.DB.DatabaseURL)
	if err != nil {
		lg.Error("storage_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer st.Close()

	lg.Info("storage_initialized")

	rdb, err := cache.Connect(initCtx, cfg.Redis.RedisURL)
	if err != nil {
		lg.Error("redis_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if cerr := rdb.Close(); cerr != nil {
			lg.Warn("redis_close_failed", slog.String("err", cerr.Error()))
		}
	}()

	lg.Info("redis_initialized")

	m := metrics.New()

	svc := service.New(st, codec, cfg.Auth)
	svc.SetRotationLock(cache.NewRotationLock(rdb, "crm:lock:refresh:", cache.DefaultLockTTL))
	svc.SetMetrics(m)

	h := handlers.New(svc, security.CookiePolicy{SameSite: sameSite, Secure: cfg.Cookie.Secure}, cfg.Cookie.CSRFTTL)

	apiHandler := authhttp.NewRouter(h, codec, authhttp.Options{
		Logger:         lg,
		Timeout:        cfg.Timeouts.Service,
		BasePath:       cfg.HTTP.BasePath,
		TrustProxy:     cfg.HTTP.TrustProxy,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Metrics:        m,
		LoginLimiter:   cache.NewWindowLimiter(rdb, "crm:rl:login:", cfg.RateLimit.LoginPerWindow, cfg.RateLimit.Window),
	})

	var ready atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !ready.Load() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", m.Handler())
	mux.Handle("/", apiHandler)

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		lg.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		os.Exit(1)
	}

	lg.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	ready.Store(true)
	lg.Info("crm_auth_ready")

	select {
	case <-rootCtx.Done():
		lg.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			lg.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		lg.Info("http_stopped")
	}

	lg.Info("service_stopped")
}
