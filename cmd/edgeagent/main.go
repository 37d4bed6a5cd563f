// edgeagent - resident telemetry agent for embedded Linux boards.
//
// The agent reads newline-delimited records from a serial device and
// forwards each one, together with periodic host metrics snapshots, to up
// to three independently configured sinks (MQTT, HTTP, InfluxDB). Sinks and
// the serial port are reconfigured at runtime through the local HTTP API
// without restarting the process.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/nerrad567/edge-telemetry/internal/api"
	"github.com/nerrad567/edge-telemetry/internal/history"
	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/edge-telemetry/internal/infrastructure/database"
	"github.com/nerrad567/edge-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/edge-telemetry/internal/metrics"
	"github.com/nerrad567/edge-telemetry/internal/sink"
	"github.com/nerrad567/edge-telemetry/internal/sysinfo"
	"github.com/nerrad567/edge-telemetry/internal/telemetry"
	"github.com/nerrad567/edge-telemetry/internal/timesync"
	"github.com/nerrad567/edge-telemetry/internal/uart"
	"github.com/nerrad567/edge-telemetry/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "/etc/edgeagent/agent.yaml"

// errExitClean stops run without an error after --help or --version.
var errExitClean = errors.New("clean exit")

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errExitClean) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	configPath string
}

// parseFlags parses args. It returns errExitClean after printing help or
// the version to out.
func parseFlags(args []string, out io.Writer) (options, error) {
	var opts options
	var showVersion bool

	flagSet := pflag.NewFlagSet("edgeagent", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVarP(&opts.configPath, "config", "c", configPathDefault(), "path to the agent configuration file")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return opts, errExitClean
		}
		return opts, err
	}
	if showVersion {
		fmt.Fprintf(out, "edgeagent %s (commit %s, built %s)\n", version, commit, date)
		return opts, errExitClean
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return opts, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return opts, nil
}

// configPathDefault returns the configuration file path used when --config
// is not given. EDGEAGENT_CONFIG overrides the built-in default.
func configPathDefault() string {
	if path := os.Getenv("EDGEAGENT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown. Only startup failures, such as the API
// port being unavailable, are returned as errors; runtime faults in the
// serial device or sinks are retried by their loops.
func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseFlags(args, out)
	if err != nil {
		return err
	}

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting edgeagent",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", opts.configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Runtime settings: an absent or broken file yields defaults.
	settingsFile := config.NewSettingsFile(cfg.Settings.Path)
	settings, loadErr := settingsFile.Load()
	if loadErr != nil {
		log.Warn("using default settings", "path", settingsFile.Path(), "error", loadErr)
	}
	store := config.NewStore(settings, settingsFile)
	store.SetLogger(log.Component("config"))

	// Settings history (optional)
	var repo history.Repository
	var db *database.DB
	if cfg.History.Path != "" {
		db, err = openHistory(ctx, cfg.History)
		if err != nil {
			log.Warn("settings history disabled", "path", cfg.History.Path, "error", err)
		} else {
			defer func() {
				log.Info("closing history database")
				if closeErr := db.Close(); closeErr != nil {
					log.Error("error closing history database", "error", closeErr)
				}
			}()
			repo = history.NewSQLiteRepository(db.DB)
			log.Info("settings history enabled", "path", db.Path())
		}
	}
	recorder := history.NewRecorder(store, repo, log.Component("history"))
	recorder.RecordCurrent(ctx, history.SourceStartup)

	// Self-metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	// The clock must be right before any TLS sink validates a certificate.
	if cfg.TimeSync.Enabled {
		timesync.New(cfg.TimeSync, nil, log.Component("timesync")).Run(ctx)
	}

	collector := sysinfo.NewCollector(sysinfo.Options{
		ExternalIP: sysinfo.NewExternalIP(""),
	})
	snapshot := func() []byte { return collector.Collect().Wire() }

	// One queue and one loop per sink kind; the reader fans out to all queues.
	kinds := []sink.Kind{
		sink.NewMQTT(log),
		sink.NewHTTP(),
		sink.NewInfluxDB(),
	}
	loopOpts := sink.Options{
		Tick:    cfg.GetPollInterval(),
		Logger:  log,
		Metrics: m,
	}
	fanout := make(telemetry.Fanout, 0, len(kinds))
	loops := make([]*sink.Loop, 0, len(kinds))
	statuses := make([]api.SinkStatus, 0, len(kinds))
	for _, kind := range kinds {
		q := telemetry.NewQueue(kind.Name(), cfg.Pipeline.QueueCapacity)
		loop := sink.NewLoop(kind, q, store, snapshot, loopOpts)
		fanout = append(fanout, q)
		loops = append(loops, loop)
		statuses = append(statuses, loop)
	}

	reader := uart.NewReader(store, fanout, uart.Options{
		Logger:  log,
		Metrics: m,
	})

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Logger:   log.Component("api"),
		Store:    store,
		Replacer: recorder,
		History:  repo,
		Ingest:   reader,
		Sinks:    statuses,
		Snapshot: snapshot,
		Metrics:  m,
		Gatherer: reg,
		DB:       db,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reader.Run(ctx)
	}()
	for _, loop := range loops {
		loop := loop
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.Run(ctx)
		}()
	}

	log.Info("edgeagent running",
		"api", server.Addr(),
		"uart_port", settings.UART.Port,
		"queue_capacity", cfg.Pipeline.QueueCapacity,
	)

	<-ctx.Done()
	log.Info("shutdown signal received, stopping loops")
	wg.Wait()
	log.Info("edgeagent stopped")
	return nil
}

// openHistory opens the history database and applies the embedded schema.
func openHistory(ctx context.Context, cfg config.HistoryConfig) (*database.DB, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // migration error takes precedence
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}
