// Copyright 2025 Certen Protocol
//
// Entry point for the fair-sequencer coordinator. Wires configuration,
// the Postgres repository, the on-chain bridge, the domain event
// dispatcher, Prometheus metrics, the six batch use-cases and the HTTP
// API together, following the teacher's main.go shape: load config,
// connect infra, start HTTP, wait on a signal, shut down gracefully.

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/certen/fair-sequencer/pkg/chain"
	"github.com/certen/fair-sequencer/pkg/config"
	"github.com/certen/fair-sequencer/pkg/events"
	"github.com/certen/fair-sequencer/pkg/metrics"
	"github.com/certen/fair-sequencer/pkg/server"
	"github.com/certen/fair-sequencer/pkg/store/postgres"
	"github.com/certen/fair-sequencer/pkg/usecase"
)

var version = "dev"

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("starting fair-sequencer coordinator (%s)", version)

	showHelp := flag.Bool("help", false, "show help message")
	flag.Parse()
	if *showHelp {
		printHelp()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("configuration invalid: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Println("connecting to Postgres...")
	store, err := postgres.Open(ctx, postgres.Config{
		DatabaseURL:     cfg.DatabaseURL,
		MaxOpenConns:    cfg.DatabaseMaxConns,
		MaxIdleConns:    cfg.DatabaseMinConns,
		ConnMaxIdleTime: cfg.DatabaseMaxIdleTime,
		ConnMaxLifetime: cfg.DatabaseMaxLifetime,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer store.Close()
	log.Println("connected to Postgres")

	log.Println("connecting to chain RPC...")
	chainBridge, err := chain.New(chain.Config{
		RPCURL:          cfg.SepoliaRPCURL,
		ContractAddress: cfg.CommitRevealContractAddress,
		PrivateKeyHex:   cfg.PrivateKey,
		PollInterval:    10 * time.Second,
		BlockLookback:   500,
	}, log.New(log.Writer(), "[Bridge] ", log.LstdFlags))
	if err != nil {
		log.Fatalf("failed to connect to chain: %v", err)
	}
	log.Println("connected to chain RPC")

	dispatcher := events.New(log.New(log.Writer(), "[Events] ", log.LstdFlags))
	registry := metrics.New()
	registry.Subscribe(dispatcher.On)

	logFor := func(prefix string) *log.Logger {
		return log.New(log.Writer(), "["+prefix+"] ", log.LstdFlags)
	}

	createBatch := usecase.NewCreateBatch(store, chainBridge, dispatcher, logFor("CreateBatch"))
	submitCommitment := usecase.NewSubmitCommitment(store, chainBridge, dispatcher, logFor("SubmitCommitment"))
	revealTransaction := usecase.NewRevealTransaction(store, chainBridge, dispatcher, logFor("RevealTransaction"))
	advancePhase := usecase.NewAdvanceBatchPhase(store, chainBridge, dispatcher, logFor("AdvancePhase"))
	finalizeBatch := usecase.NewFinalizeBatch(store, chainBridge, dispatcher, logFor("FinalizeBatch"))
	cancelBatch := usecase.NewCancelBatch(store, chainBridge, dispatcher, logFor("CancelBatch"))

	srv := server.New(server.Dependencies{
		CreateBatch:       createBatch,
		SubmitCommitment:  submitCommitment,
		RevealTransaction: revealTransaction,
		AdvancePhase:      advancePhase,
		FinalizeBatch:     finalizeBatch,
		CancelBatch:       cancelBatch,
		Logger:            logFor("Server"),
		Version:           version,
	})

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", registry.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}

	if err := chainBridge.StartEventListening(ctx); err != nil {
		log.Printf("warning: failed to start chain event listener: %v", err)
	} else {
		log.Println("chain event listener started")
	}

	go func() {
		log.Printf("API listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	go func() {
		log.Printf("metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	cancel()

	if err := chainBridge.StopEventListening(); err != nil {
		log.Printf("chain event listener shutdown error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	log.Println("fair-sequencer coordinator stopped")
}

func printHelp() {
	log.Println("fair-sequencer: commit-reveal batch auction coordinator")
	log.Println("usage: fair-sequencer [-help]")
	log.Println("configuration is read from environment variables; see pkg/config for the full list")
}
