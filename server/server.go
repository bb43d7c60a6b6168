package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"SeekBeat/config"
	"SeekBeat/logger"
)

// handle registers path with and without its trailing slash.
func handle(r *mux.Router, path string, h http.Handler, methods ...string) {
	r.Handle(path, h).Methods(methods...)
	if trimmed := path[:len(path)-1]; path[len(path)-1] == '/' && trimmed != "" {
		r.Handle(trimmed, h).Methods(methods...)
	}
}

// NewRouter 创建路由
func NewRouter(cfg *config.Config, h *APIHandler) http.Handler {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)

	limiter := newIPLimiter(cfg.StreamRatePerMinute)

	handle(router, "/health", http.HandlerFunc(h.HealthHandler), http.MethodGet)
	handle(router, "/api/search/", http.HandlerFunc(h.SearchHandler), http.MethodGet)
	handle(router, "/api/search/bulk/", http.HandlerFunc(h.BulkSearchHandler), http.MethodGet)
	handle(router, "/api/search/lan/", http.HandlerFunc(h.LANSearchHandler), http.MethodGet)
	handle(router, "/api/stream/{id}/", limiter.middleware(http.HandlerFunc(h.StreamHandler)),
		http.MethodGet, http.MethodPost)

	return corsMiddleware()(router)
}

// Start 启动 HTTP 服务并在收到中断信号后优雅关闭
func Start(ctx context.Context, cfg *config.Config) error {
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewRouter(cfg, app.Handler),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// no WriteTimeout: transcoded streams run as long as the song
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.Int("port", cfg.Port), logger.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
