package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"claims-orchestrator/internal/agents"
	"claims-orchestrator/internal/api"
	"claims-orchestrator/internal/config"
	"claims-orchestrator/internal/storage"
	"claims-orchestrator/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var (
		store   workflow.Store
		readier api.Readier
	)
	if cfg.PostgresDSN != "" {
		pg, err := storage.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("connect postgres: %v", err)
		}
		defer pg.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := pg.Ping(ctx); err != nil {
			cancel()
			log.Fatalf("postgres ping: %v", err)
		}
		cancel()
		store = pg
		readier = pg
	} else {
		log.Printf("POSTGRES_DSN not set, using in-memory store")
		store = storage.NewMemoryStore()
	}

	llm := agents.NewHTTPClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	opts := agents.Options{
		Model:   cfg.OpenAIModel,
		Timeout: time.Duration(cfg.OpenAITimeoutSec) * time.Second,
	}
	bundle := workflow.Agents{
		Validator: agents.NewValidator(llm, opts),
		Fraud:     agents.NewFraudDetector(llm, opts),
		Policy:    agents.NewPolicyChecker(llm, opts),
		Documents: agents.NewDocumentAnalyzer(llm, opts),
		Decision:  agents.NewDecisionMaker(llm, opts),
		Similar:   agents.NewMemoryClaimsIndex(),
	}

	executor := workflow.NewExecutor(store, bundle, time.Duration(cfg.AgentTimeoutSec)*time.Second)

	sweeper := workflow.NewReviewSweeper(executor, time.Duration(cfg.ReviewTTLMinutes)*time.Minute, cfg.ReviewSweepSchedule)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("start review sweeper: %v", err)
	}
	defer sweeper.Stop()

	var blob api.DocumentBlobStore
	if cfg.MinioConfigured() {
		minioStore, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket)
		if err != nil {
			log.Fatalf("connect minio: %v", err)
		}
		blob = minioStore
	} else {
		log.Printf("MinIO credentials not set, document uploads disabled")
	}
	h := api.NewHandler(cfg, store, executor, blob, readier)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
