package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sf49-studio/designer/internal/assistant"
	"github.com/sf49-studio/designer/internal/config"
	"github.com/sf49-studio/designer/internal/handlers"
	"github.com/sf49-studio/designer/internal/imagehook"
	"github.com/sf49-studio/designer/internal/orchestrator"
	"github.com/sf49-studio/designer/internal/session"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting Designer API")

	cfg := config.Load()
	if cfg.OpenAIAPIKey == "" {
		log.Fatal().Msg("OPENAI_API_KEY is required")
	}
	if cfg.WebhookBaseURL == "" {
		log.Fatal().Msg("WEBHOOK_BASE_URL is required")
	}

	agent, err := assistant.NewClient(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize assistant client")
	}

	images := imagehook.NewClient(
		cfg.WebhookBaseURL, cfg.WebhookSubmitPath, cfg.WebhookRetrievePath,
		cfg.WebhookTimeout,
	)

	progress := handlers.NewProgressHub()

	engine := orchestrator.New(agent, images, cfg)
	engine.SetProgressSink(progress)

	sessions := session.NewStore()
	h := handlers.NewHandler(engine, sessions, progress)

	r := mux.NewRouter()
	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/sessions", h.CreateSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", h.DeleteSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/messages", h.PostMessage).Methods("POST")
	api.HandleFunc("/sessions/{id}/cancel", h.CancelRequest).Methods("POST")
	api.HandleFunc("/sessions/{id}/progress", h.ProgressWS).Methods("GET")

	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// PostMessage blocks until the orchestration finishes, which can
		// take the full image wait ceiling plus the agent's own run time.
		WriteTimeout: cfg.ImageWaitCeiling + 60*time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down API...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("API exited")
}
