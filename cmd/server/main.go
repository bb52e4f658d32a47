package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ignite/dialer-sync/internal/api"
	"github.com/ignite/dialer-sync/internal/calltools"
	"github.com/ignite/dialer-sync/internal/classify"
	"github.com/ignite/dialer-sync/internal/config"
	"github.com/ignite/dialer-sync/internal/highlevel"
	"github.com/ignite/dialer-sync/internal/pkg/distlock"
	"github.com/ignite/dialer-sync/internal/repository/postgres"
	"github.com/ignite/dialer-sync/internal/syncer"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	slash := strings.Index(rest, "/")
	if slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  Dialer Sync Server (cmd/server/main.go)                   ║")
	log.Println("║  CRM webhook ingestion + dialer contact mirroring          ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	// Load configuration
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	// Pre-flight check: verify the target port is available
	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", port)

	// Connect to the sync ledger database
	if cfg.Database.URL == "" {
		log.Fatal("database.url (or DATABASE_URL) is required")
	}
	dbURL := cfg.Database.URL
	if !strings.Contains(dbURL, "connect_timeout") {
		sep := "?"
		if strings.Contains(dbURL, "?") {
			sep = "&"
		}
		dbURL += sep + "connect_timeout=5"
	}
	log.Printf("DB URL host portion: ...@%s/...", extractHost(dbURL))

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to sync ledger database")

	// Optional Redis for cross-host reconcile locks
	var redisClient *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Redis unreachable (%v), falling back to PG advisory locks", err)
			redisClient = nil
		} else {
			log.Printf("Redis connected: %s", cfg.Redis.Addr)
		}
		cancel()
	}

	// Vendor clients
	hlClient := highlevel.NewClient(highlevel.Config{
		BaseURL:        cfg.HighLevel.BaseURL,
		APIKey:         cfg.HighLevel.APIKey,
		LocationID:     cfg.HighLevel.LocationID,
		TimeoutSeconds: cfg.HighLevel.TimeoutSeconds,
	})
	ctClient := calltools.NewClient(calltools.Config{
		BaseURL:        cfg.CallTools.BaseURL,
		APIKey:         cfg.CallTools.APIKey,
		TimeoutSeconds: cfg.CallTools.TimeoutSeconds,
	})

	// Reconciliation engine
	classifier := classify.New(classify.Config{
		ActiveLabels:       cfg.Classify.ActiveLabels,
		CustomerSubstrings: cfg.Classify.CustomerSubstrings,
		ColdSubstrings:     cfg.Classify.ColdSubstrings,
	})
	ledger := postgres.NewLedgerRepo(db)
	locks := distlock.NewFactory(redisClient, db, 30*time.Second)
	engine := syncer.NewEngine(
		syncer.NewHighLevelSource(hlClient),
		syncer.NewCallToolsDialer(ctClient),
		ledger,
		classifier,
		locks,
		syncer.Config{
			ColdBucketID:   cfg.CallTools.ColdBucketID,
			ActiveBucketID: cfg.CallTools.ActiveBucketID,
			ColdTagName:    cfg.CallTools.ColdTagName,
			ActiveTagName:  cfg.CallTools.ActiveTagName,
			ResyncTag:      cfg.HighLevel.ColdLeadTag,
			WorkerWidth:    cfg.Sync.WorkerWidth,
			ChunkDelay:     cfg.Sync.ChunkDelay(),
		},
	)

	if cfg.Webhook.Secret == "" {
		log.Println("WARNING: no webhook secret configured, signed path runs UNAUTHENTICATED")
	}
	if cfg.Sync.AdminToken == "" {
		log.Println("WARNING: no admin token configured, /sync routes are OPEN")
	}

	// Scheduled resync fallback for webhook deliveries the sender never retried
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if interval := cfg.Sync.ResyncInterval(); interval > 0 {
		go engine.StartScheduled(ctx, interval)
	}

	// API server
	handlers := api.NewHandlers(engine, ledger, cfg.Webhook, db)
	handlers.SetVendorProbes(hlClient, ctClient)
	server := api.NewServer(cfg.Server, handlers, cfg.Sync.AdminToken)

	addr := fmt.Sprintf("%s:%d", host, port)
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil {
			log.Printf("HTTP server stopped: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal %v, shutting down...", sig)

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
