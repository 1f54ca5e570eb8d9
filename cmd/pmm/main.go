// Package main runs the persistent mind model runtime: the event ledger,
// its projections, the retrieval/reflection/summary turn loop, and the
// autonomy scheduler that drives reflection and indexing between turns.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/adapter"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/commitment"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/temporal"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/topology"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/autonomy"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/config"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/database"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/runtimeloop"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/version"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/websearch"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables...")
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	log.Printf("starting %s", version.Full())
	log.Printf("config directory: %s", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("error closing database client: %v", err)
		}
	}()
	log.Println("connected to PostgreSQL database")

	store := eventlog.NewPostgresStore(dbClient.DB())
	ledger, err := eventlog.Open(ctx, eventlog.WithStore(store))
	if err != nil {
		log.Fatalf("failed to open event ledger: %v", err)
	}
	log.Printf("event ledger opened with %d events", ledger.Count())

	modelAdapter := adapter.NewRetryingAdapter(
		adapter.NewAnthropicAdapter(adapter.AnthropicConfig{
			APIKeyEnv: cfg.Adapter.APIKeyEnv,
			Model:     cfg.Adapter.Model,
			MaxTokens: cfg.Adapter.MaxTokens,
		}),
		cfg.Adapter,
	)
	webSearch := websearch.NewClient(cfg.WebSearch)

	loop := runtimeloop.NewRuntimeLoop(ledger, modelAdapter, webSearch, cfg)

	commitAnalyzer := commitment.New(ledger)
	temporalAnalyzer := temporal.New(ledger)
	topoAnalyzer := topology.NewAnalyzer(loop.Concepts)
	identityAnalyzer := topology.NewIdentityAnalyzer(topoAnalyzer, cfg.Topology.IdentityTokens, topology.DefaultThresholds())

	kernel := autonomy.NewKernel(ledger, identityAnalyzer, temporalAnalyzer, commitAnalyzer, cfg.Thresholds)
	telemetry := autonomy.NewTelemetry(ledger, identityAnalyzer, temporalAnalyzer, commitAnalyzer, int64(cfg.Thresholds.SnapshotInterval))
	executor := runtimeloop.NewTickExecutor(loop)
	dispatcher := autonomy.NewDispatcher(ledger, kernel, executor, telemetry)
	dispatcher.Attach()

	supervisor := autonomy.NewSupervisor(ledger, temporalAnalyzer, cfg.Supervisor)
	supervisor.Start(ctx)
	defer supervisor.Stop()

	log.Println("autonomy supervisor started")
	log.Println("ready; reading turns from stdin (one line per turn, Ctrl-D to exit)")

	runStdinLoop(ctx, loop)
}

// runStdinLoop is the runtime's interactive surface: no HTTP/TUI dashboard
// is in scope, so turns are read line by line from stdin and the reply is
// written to stdout.
func runStdinLoop(ctx context.Context, loop *runtimeloop.RuntimeLoop) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		result, err := loop.RunTurn(ctx, line)
		if err != nil {
			slog.Error("turn failed", "error", err)
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(result.Reply)
	}
	if err := scanner.Err(); err != nil {
		slog.Error("stdin read failed", "error", err)
	}
}
