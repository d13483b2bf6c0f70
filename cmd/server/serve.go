package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/urfave/cli/v3"

	"github.com/handsomefox/reelshelf/internal/auth"
	"github.com/handsomefox/reelshelf/internal/config"
	"github.com/handsomefox/reelshelf/internal/handlers"
	"github.com/handsomefox/reelshelf/internal/logger"
	"github.com/handsomefox/reelshelf/internal/store"
	"github.com/handsomefox/reelshelf/internal/tmdb"
)

const sessionPurgeInterval = time.Hour

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close DB", logger.Error(err))
		}
	}()

	authSvc := auth.New(st)
	app, err := handlers.New(&handlers.Config{
		Store:         st,
		TMDB:          tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.ReadToken, tmdb.WithRate(cfg.TMDB.Rate)),
		Auth:          authSvc,
		ImageBase:     cfg.TMDB.ImageBase,
		PageSize:      cfg.PageSize,
		ViewCacheSize: cfg.ViewCacheSize,
	})
	if err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	go purgeSessions(ctx, authSvc)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newRouter(&cfg, app),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("addr", server.Addr), slog.String("env", string(cfg.Env)))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newRouter(cfg *config.Config, app *handlers.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(slog.Default(), &httplog.Options{
		Level:         slog.LevelInfo,
		Schema:        httplog.SchemaECS.Concise(!cfg.Env.IsProduction()),
		RecoverPanics: true,
	}))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Route("/api", app.RegisterRoutes)
	return r
}

func purgeSessions(ctx context.Context, svc *auth.Service) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()
	for {
		_ = svc.PurgeExpired(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
