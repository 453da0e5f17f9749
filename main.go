package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gezhip02/chat-english/internal/adapter/did"
	"github.com/gezhip02/chat-english/internal/adapter/llm"
	"github.com/gezhip02/chat-english/internal/config"
	"github.com/gezhip02/chat-english/internal/hub"
	"github.com/gezhip02/chat-english/internal/metrics"
	"github.com/gezhip02/chat-english/internal/orchestrator"
	"github.com/gezhip02/chat-english/internal/render"
	"github.com/gezhip02/chat-english/internal/repository"
	"github.com/gezhip02/chat-english/internal/service"
	handler "github.com/gezhip02/chat-english/internal/transport/http"
	"github.com/gezhip02/chat-english/internal/transport/rpc"
	"github.com/gezhip02/chat-english/internal/transport/ws"
	"github.com/gezhip02/chat-english/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting chat-english...")
	log.Printf("External HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Internal HTTP Port: %d", cfg.InternalPort)
	log.Printf("RPC Address: %s", cfg.RPCAddr)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Default provider: %s (mode %q)", cfg.DefaultProvider, cfg.Mode)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize provider registry
	m := metrics.New()
	orch := orchestrator.New(
		orchestrator.WithMetrics(m),
		orchestrator.WithAdapterOptions(llm.Options{Timeout: cfg.ProviderTimeout, RatePerSec: cfg.VendorRatePerSec}),
		orchestrator.WithMock(llm.NewMock(cfg.MockDelay)),
	)
	orch.Configure(cfg.Mode, cfg.DefaultProvider, cfg.ProviderSnapshot())
	log.Printf("Active provider: %s", orch.Active().ID)

	// Initialize avatar renderer
	var vendor render.Vendor
	if cfg.DIDAPIKey != "" && !cfg.IsMock() {
		client := did.NewClient(cfg.DIDAPIKey, cfg.DIDBaseURL, cfg.ProviderTimeout, cfg.VendorRatePerSec)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := client.Ping(pingCtx); err != nil {
			log.Printf("WARN: D-ID ping failed: %v", err)
		}
		cancel()
		vendor = client
	} else {
		log.Printf("Avatar rendering uses the mock renderer")
		vendor = did.NewMockVendor(2)
	}

	// Initialize policy engine
	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.PolicyFile)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize service
	svc := service.New(service.Deps{
		Store:        db,
		Orchestrator: orch,
		Vendor:       vendor,
		Metrics:      m,
		Policy:       policyEngine,
		Config:       cfg,
	})
	if cfg.ProvidersFile != "" {
		if err := svc.ReloadFromFile(ctx); err != nil {
			log.Printf("WARN: failed to load providers file %s: %v", cfg.ProvidersFile, err)
		}
	}

	// Initialize websocket hub
	h := hub.New()
	go h.Run(ctx)
	svc.SetBroadcaster(h)
	wsServer := ws.NewServer(cfg, h, svc)

	// Initialize servers
	externalServer := handler.NewExternalServer(svc, wsServer)
	internalServer := handler.NewInternalServer(svc)
	rpcServer, err := rpc.NewServer(svc)
	if err != nil {
		log.Fatalf("Failed to initialize RPC server: %v", err)
	}

	// Background loops
	go orch.RunHealthMonitor(ctx, cfg.HealthCheckInterval)
	go svc.RunIdleSessionReaper(ctx)
	if cfg.ProvidersFile != "" {
		go func() {
			err := config.Watch(ctx, cfg.ProvidersFile, 250*time.Millisecond, func(pf *config.ProvidersFile) {
				log.Printf("Providers file changed, reloading")
				svc.Reload(ctx, pf)
			})
			if err != nil {
				log.Printf("WARN: providers file watcher stopped: %v", err)
			}
		}()
	}

	// Start external server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := externalServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start external server: %v", err)
		}
	}()

	// Start internal server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.InternalPort)
		if err := internalServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start internal server: %v", err)
		}
	}()

	// Start RPC server
	go func() {
		if err := rpcServer.Start(cfg.RPCAddr); err != nil {
			log.Fatalf("Failed to start RPC server: %v", err)
		}
	}()

	log.Printf("External API started on port %d", cfg.HTTPPort)
	log.Printf("Internal API started on port %d", cfg.InternalPort)
	log.Printf("RPC server started on %s", cfg.RPCAddr)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down chat-english...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc.Shutdown(shutdownCtx)
	stop()

	if err := externalServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown external server gracefully: %v", err)
	}
	if err := internalServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown internal server gracefully: %v", err)
	}
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown RPC server gracefully: %v", err)
	}

	log.Println("chat-english stopped")
}
