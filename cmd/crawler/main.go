// Command crawler runs the Matter device certification directory crawler:
// an HTTP/WebSocket API exposing session control RPCs, backed by the
// actor-based crawl engine and a PostgreSQL product store.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/matter-crawler/pkg/adapters/fetch"
	"github.com/codeready-toolchain/matter-crawler/pkg/adapters/parse"
	"github.com/codeready-toolchain/matter-crawler/pkg/adapters/store"
	"github.com/codeready-toolchain/matter-crawler/pkg/api"
	"github.com/codeready-toolchain/matter-crawler/pkg/config"
	"github.com/codeready-toolchain/matter-crawler/pkg/database"
	"github.com/codeready-toolchain/matter-crawler/pkg/events"
	"github.com/codeready-toolchain/matter-crawler/pkg/planner"
	"github.com/codeready-toolchain/matter-crawler/pkg/session"
	"github.com/codeready-toolchain/matter-crawler/pkg/stageactor"
	"github.com/codeready-toolchain/matter-crawler/pkg/strategy"
	"github.com/codeready-toolchain/matter-crawler/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	httpAddr := flag.String("http-addr", getEnv("HTTP_ADDR", ":8080"), "address to serve the API on")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v (continuing with existing environment)", envPath, err)
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	gin.SetMode(getEnv("GIN_MODE", "release"))

	log.Printf("starting %s", version.Full())

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("error closing database client: %v", err)
		}
	}()
	log.Println("connected to PostgreSQL, migrations applied")

	repo := store.NewPostgresRepository(dbClient.DB())

	fetcher := fetch.NewHTTPFetcher(fetch.Config{
		BaseURL:              cfg.Site.BaseURL,
		StatusPath:           cfg.Site.StatusPath,
		ListPathFormat:       cfg.Site.ListPathFormat,
		RequestTimeout:       time.Duration(cfg.Fetch.RequestTimeoutSeconds) * time.Second,
		MaxRequestsPerSecond: cfg.Fetch.MaxRequestsPerSecond,
		UserAgent:            cfg.Fetch.UserAgent,
	})
	parser := parse.NewGoqueryParser()

	factory := strategy.NewFactory(strategy.Deps{
		Fetcher:    fetcher,
		Parser:     parser,
		Repository: repo,
		PerPage:    cfg.Planning.ProductsPerPage,
	})

	bridge := events.NewBridge()

	sessionMgr := session.NewManager(session.Config{
		MaxConcurrentSessions: cfg.Session.MaxConcurrentSessions,
		SessionParallelism:    cfg.Session.SessionParallelism,
		ReplanOnGrowth:        cfg.Session.ReplanOnGrowth,
		PlanOptions: planner.Options{
			BatchSize:        cfg.Planning.BatchSize,
			ProductsPerPage:  cfg.Planning.ProductsPerPage,
			ConcurrencyLimit: cfg.Planning.ConcurrencyLimit,
		},
		RetryPolicy: stageactor.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseBackoff: time.Duration(cfg.Retry.BaseBackoffMS) * time.Millisecond,
			MaxBackoff:  time.Duration(cfg.Retry.MaxBackoffMS) * time.Millisecond,
		},
		ResumeDir: cfg.Session.ResumeDir,
	}, factory, repo, bridge)

	if err := os.MkdirAll(cfg.Session.ResumeDir, 0o755); err != nil {
		log.Fatalf("failed to create resume directory %s: %v", cfg.Session.ResumeDir, err)
	}

	server := api.NewServer(dbClient, sessionMgr, repo, bridge)
	server.SetMismatchScanner(&api.ListPageScanner{Factory: factory, Repo: repo})

	if err := server.ValidateWiring(); err != nil {
		log.Fatalf("server wiring incomplete: %v", err)
	}

	go func() {
		log.Printf("HTTP server listening on %s", *httpAddr)
		if err := server.Start(*httpAddr); err != nil {
			log.Printf("HTTP server stopped: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("error during HTTP server shutdown: %v", err)
	}
}
