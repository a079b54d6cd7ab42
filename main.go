package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"leadqualify/internal/agents"
	"leadqualify/internal/api"
	"leadqualify/internal/cache"
	"leadqualify/internal/config"
	"leadqualify/internal/leads"
	"leadqualify/internal/llm"
	"leadqualify/internal/logger"
	"leadqualify/internal/retrieval"
	"leadqualify/internal/router"
	"leadqualify/internal/storage"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := logger.Init(cfg.Logger); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("service failed")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	redisClient, err := storage.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	generator, err := llm.NewOpenAIGenerator(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	responseCache := cache.New(cache.NewRedisBackend(redisClient), time.Duration(cfg.Cache.TTLHours)*time.Hour)
	strategies := agents.New(generator, responseCache)
	memoryStore := storage.NewRedisMemoryStore(redisClient)

	embed := chromem.NewEmbeddingFuncOpenAI(cfg.LLM.APIKey, chromem.EmbeddingModelOpenAI3Small)
	store, err := retrieval.NewStore(cfg.Retrieval.DataDir, embed)
	if err != nil {
		return err
	}

	ingestor := retrieval.NewIngestor(store, cfg.Retrieval.HashFile)
	if err := seedContent(ctx, store, ingestor, cfg); err != nil {
		return err
	}
	refreshInterval := time.Duration(cfg.Retrieval.RefreshIntervalHours) * time.Hour
	go retrieval.NewRefresher(ingestor, cfg.Retrieval.URLs, refreshInterval).Run(ctx)

	sink, err := leads.OpenSQLite(cfg.Leads.DBPath)
	if err != nil {
		return err
	}
	defer sink.Close()

	dialog := router.New(strategies, store, memoryStore, sink)

	deps := api.Deps{
		Dialog:    dialog,
		Retriever: store,
		Store:     memoryStore,
		Sink:      sink,
		Webhook:   leads.NewWebhookNotifier(cfg.WebhookContactURL, cfg.WebhookCallURL),
	}
	if cfg.SMTP.Host != "" {
		deps.Email = leads.NewEmailNotifier(cfg.SMTP)
	}
	if cfg.Scheduler.APIKey != "" {
		deps.Scheduler = leads.NewCallScheduler(cfg.Scheduler)
	}

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewServer(cfg.Server, deps).Engine(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedContent fills empty collections on first start and re-ingests sales
// content when its configuration changed.
func seedContent(ctx context.Context, store *retrieval.Store, ingestor *retrieval.Ingestor, cfg *config.Config) error {
	counts := store.Counts()
	log.Info().
		Int("website", counts[retrieval.CollectionWebsite]).
		Int("sales", counts[retrieval.CollectionSales]).
		Msg("vector store state")

	if counts[retrieval.CollectionWebsite] == 0 && len(cfg.Retrieval.URLs) > 0 {
		if err := ingestor.IngestWebsite(ctx, cfg.Retrieval.URLs); err != nil {
			return err
		}
	}
	if len(cfg.Retrieval.SalesContent) > 0 {
		if err := ingestor.IngestSales(ctx, cfg.Retrieval.SalesContent); err != nil {
			return err
		}
	}
	return nil
}
