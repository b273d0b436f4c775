package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jordanhubbard/cogload/internal/agents"
	"github.com/jordanhubbard/cogload/internal/analytics"
	"github.com/jordanhubbard/cogload/internal/api"
	"github.com/jordanhubbard/cogload/internal/auth"
	"github.com/jordanhubbard/cogload/internal/briefing"
	"github.com/jordanhubbard/cogload/internal/cache"
	"github.com/jordanhubbard/cogload/internal/cognitive"
	"github.com/jordanhubbard/cogload/internal/database"
	"github.com/jordanhubbard/cogload/internal/events"
	"github.com/jordanhubbard/cogload/internal/github"
	"github.com/jordanhubbard/cogload/internal/logging"
	"github.com/jordanhubbard/cogload/internal/metrics"
	"github.com/jordanhubbard/cogload/internal/orchestrator"
	"github.com/jordanhubbard/cogload/internal/provider"
	"github.com/jordanhubbard/cogload/internal/telemetry"
	"github.com/jordanhubbard/cogload/pkg/config"
)

const version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help message")
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}

	if *showVersion {
		fmt.Printf("cogload v%s\n", version)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config from %s: %v", *configPath, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTelemetry(runCtx, cfg.Telemetry.ServiceName, version, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			log.Printf("Warning: Failed to initialize telemetry: %v", err)
		} else {
			defer func() {
				if err := shutdownTelemetry(context.Background()); err != nil {
					log.Printf("Error shutting down telemetry: %v", err)
				}
			}()
		}
	}

	dsn := cfg.Database.DSN
	if cfg.Database.Type == "sqlite" {
		dsn = cfg.Database.Path
	}
	db, err := database.New(cfg.Database.Type, dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	logs := logging.NewManager(db.DB(), db.Dialect() == database.DialectPostgres)
	logs.InstallLogInterceptor()
	defer logs.Flush()

	m := metrics.NewMetrics()

	c := cache.New(&cfg.Cache, m)
	defer c.Close()

	bus, err := events.New(cfg.Events, m)
	if err != nil {
		log.Printf("Warning: event bus unavailable, falling back to in-process delivery: %v", err)
		bus = events.NewMemoryBus(m)
	}
	defer bus.Close()

	loc := time.Local
	if cfg.Engine.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Engine.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone %q: %v", cfg.Engine.Timezone, err)
		}
	}

	var weights cognitive.WeightsSource = cognitive.StaticWeights(cognitive.DefaultWeights())
	if cfg.Engine.WeightsFile != "" {
		profiles, err := cognitive.LoadProfiles(cfg.Engine.WeightsFile)
		if err != nil {
			log.Fatalf("failed to load weight profiles: %v", err)
		}
		if err := profiles.Watch(runCtx); err != nil {
			log.Printf("Warning: weight profiles will not hot-reload: %v", err)
		}
		weights = profiles
	}

	engine := cognitive.NewEngine(db, weights,
		cognitive.WithLocation(loc),
		cognitive.WithPublisher(bus),
		cognitive.WithMetrics(m),
	)

	completer, err := provider.New(cfg.Advisory, m)
	if err != nil {
		log.Fatalf("failed to configure advisory backend: %v", err)
	}

	orch := orchestrator.New(db, engine,
		agents.NewFocusAgent(completer, cfg.Agents.Config, m),
		agents.NewPlanningAgent(completer, cfg.Agents.Config, m),
		agents.NewInterruptGuard(completer, cfg.Agents.Config, m),
		orchestrator.WithPublisher(bus),
		orchestrator.WithCache(c),
		orchestrator.WithRunLogger(logs),
		orchestrator.WithMetrics(m),
		orchestrator.WithLimits(cfg.Agents.Limits),
	)

	briefings := briefing.NewGenerator(db, completer, cfg.Agents.Briefing, 0)
	briefings.SetPublisher(bus)

	var syncer *github.Syncer
	if cfg.GitHub.Enabled {
		syncer = github.NewSyncer(github.NewClient(cfg.GitHub.GHPath, cfg.GitHub.Token), db, engine, cfg.GitHub.RepoLimit)
		syncer.SetInvalidator(c)
		syncer.SetPublisher(bus)
		syncer.SetMetrics(m)
	}

	var validator *auth.Validator
	if cfg.Security.EnableAuth {
		validator, err = auth.NewValidator(cfg.Security.JWTSecret, cfg.Security.JWTIssuer)
		if err != nil {
			log.Fatalf("failed to configure auth: %v", err)
		}
	}

	var scheduler *orchestrator.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = orchestrator.NewScheduler(db, orch, cfg.Scheduler.Interval, cfg.Scheduler.Lookback)
		scheduler.Start(runCtx)
	}

	apiServer := api.NewServer(api.Config{
		EnableAuth:     cfg.Security.EnableAuth,
		AllowedOrigins: cfg.Security.AllowedOrigins,
		DefaultUserID:  cfg.Security.DefaultUserID,
		Version:        version,
		ScoreTTL:       cfg.Cache.DefaultTTL,
	}, api.Deps{
		DB:           db,
		Engine:       engine,
		Orchestrator: orch,
		Briefings:    briefings,
		Syncer:       syncer,
		Analytics:    analytics.NewRoller(db, loc),
		Cache:        c,
		Bus:          bus,
		Logs:         logs,
		Metrics:      m,
		Validator:    validator,
	})

	handler := otelhttp.NewHandler(apiServer.SetupRoutes(), "cogload-http-server")

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("cogload API listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("Shutting down")

	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

// loadConfig reads the file when it exists, otherwise starts from defaults,
// then applies environment overrides.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		cfg, err = config.LoadConfigFromFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		log.Printf("Config file %s not found, using defaults", path)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printHelp() {
	fmt.Println("Usage: cogload [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -config   Path to configuration file (default: config.yaml)")
	fmt.Println("  -version  Show version information")
	fmt.Println("  -help     Show help message")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  DATABASE_URL                  Postgres DSN (switches the store to postgres)")
	fmt.Println("  REDIS_URL                     Redis URL for the score cache")
	fmt.Println("  NATS_URL                      NATS server for the event bus")
	fmt.Println("  ADVISORY_API_KEY              API key for the advisory backend")
	fmt.Println("  JWT_SECRET                    HMAC secret for bearer tokens")
	fmt.Println("  OTEL_EXPORTER_OTLP_ENDPOINT   OTLP collector (enables tracing)")
	fmt.Println("  GH_TOKEN                      Token passed to the gh CLI")
}
