package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/listing-assistant/backend/internal/config"
	"github.com/zhouzirui/listing-assistant/backend/internal/handler"
	"github.com/zhouzirui/listing-assistant/backend/internal/model/profile"
	"github.com/zhouzirui/listing-assistant/backend/internal/service/ai"
	"github.com/zhouzirui/listing-assistant/backend/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	assistant := profile.Default()
	if cfg.ProfileFile != "" {
		assistant, err = profile.Load(cfg.ProfileFile)
		if err != nil {
			log.Fatalf("failed to load profile: %v", err)
		}
		log.Printf("profile %q loaded from %s", assistant.ID, cfg.ProfileFile)
	}

	// A missing credential is not fatal: greetings are still served and
	// provider-backed turns fail with a 500 until the service is reconfigured.
	var provider chat.Provider
	var providerName string
	aiService, err := newAIService(ctx, cfg.LLM.WithModel(assistant.Model))
	if err != nil {
		log.Printf("warning: failed to initialize AI service: %v", err)
		log.Println("continuing without AI functionality - check the LLM_PROVIDER credentials")
		provider = chat.Unavailable{Err: err}
	} else {
		provider = aiService
		providerName = aiService.Provider()
		log.Printf("AI service initialized (provider=%s model=%s)", cfg.LLM.Provider, cfg.LLM.WithModel(assistant.Model).Model)
	}

	chatService := chat.NewService(chat.NewMemoryStore(), provider, assistant)
	router := handler.NewRouter(chatService, providerName, cfg.Server.AllowedOrigins)

	startServer(ctx, cfg.Server, router)
}

func newAIService(ctx context.Context, llmCfg config.LLMConfig) (*ai.Service, error) {
	chatModel, err := llmCfg.NewChatModel(ctx)
	if err != nil {
		return nil, err
	}
	return ai.NewService(ctx, chatModel, ai.Options{
		Provider: llmCfg.Provider,
		Timeout:  llmCfg.Timeout,
	})
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("listing assistant listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
