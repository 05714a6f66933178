// Command economyd runs the economy engine as a standalone process against an
// in-memory host world, with periodic offer timeouts and autosave. Trade
// commands are read as JSON lines from the -commands file, or stdin with "-".
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	economy "github.com/0x5487/economy-engine"
	"github.com/0x5487/economy-engine/config"
	"github.com/0x5487/economy-engine/journal"
	"github.com/0x5487/economy-engine/memhost"
	"github.com/0x5487/economy-engine/persistence"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to economy.yaml (defaults are used when empty)")
		worldPath  = flag.String("world", "", "path to a world file with item definitions and players (overrides host.world_file)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides storage.data_dir)")
		commands   = flag.String("commands", "", `JSON lines command feed, "-" reads stdin`)
	)
	flag.Parse()

	if err := run(*configPath, *worldPath, *dataDir, *commands); err != nil {
		fmt.Fprintf(os.Stderr, "economyd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, worldPath, dataDir, commandsPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if worldPath != "" {
		cfg.Host.WorldFile = worldPath
	}

	log, err := newLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	economy.SetLogger(log)
	persistence.SetLogger(log)
	journal.SetLogger(log)
	memhost.SetLogger(log)

	host, err := loadHost(log, cfg.Host.WorldFile)
	if err != nil {
		return fmt.Errorf("load world: %w", err)
	}

	defaults, err := cfg.PriceList()
	if err != nil {
		return err
	}

	var publishLog economy.PublishLog = economy.NewDiscardPublishLog()
	var trades *journal.SQLiteJournal
	if cfg.Storage.JournalFile != "" {
		trades, err = journal.OpenSQLite(cfg.Path(cfg.Storage.JournalFile))
		if err != nil {
			return fmt.Errorf("open trade journal: %w", err)
		}
		publishLog = trades
	}

	engine, err := economy.NewEngine(host.Capabilities(),
		economy.WithPolicy(cfg.Policy()),
		economy.WithPublishLog(publishLog),
	)
	if err != nil {
		return err
	}

	gateway, err := persistence.NewGateway(cfg.Path(cfg.Storage.SnapshotFile),
		persistence.WithMigrator(persistence.NewXMLMigrator(
			cfg.Path(cfg.Storage.LegacyItems),
			cfg.Path(cfg.Storage.LegacyBank),
		)),
	)
	if err != nil {
		return err
	}

	go func() {
		_ = engine.Start()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrap(ctx, log, engine, gateway, defaults); err != nil {
		_ = engine.Shutdown(context.Background())
		return err
	}

	go func() {
		if err := engine.RunSweeper(ctx, cfg.Economy.SweepInterval); err != nil {
			log.Error("sweeper stopped", "error", err)
		}
	}()

	if commandsPath != "" {
		go feedCommands(ctx, log, engine, commandsPath)
	}

	log.Info("economy engine started",
		"snapshot", gateway.Path(),
		"sweep_interval", cfg.Economy.SweepInterval.String(),
		"save_interval", cfg.Storage.SaveInterval.String(),
	)

	autosave(ctx, log, engine, gateway, cfg.Storage.SaveInterval)

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := saveNow(shutdownCtx, engine, gateway); err != nil {
		errs = append(errs, fmt.Errorf("final save: %w", err))
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("engine shutdown: %w", err))
	}
	if trades != nil {
		if err := trades.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close trade journal: %w", err))
		}
	}
	return errors.Join(errs...)
}

// bootstrap loads the stored economy into the engine, adds missing catalog
// entries and saves when anything changed.
func bootstrap(ctx context.Context, log *slog.Logger, engine *economy.Engine, gateway *persistence.Gateway, defaults []*economy.MarketItem) error {
	res := gateway.Load()
	if res.Err != nil {
		log.Warn("economy data loaded with problems", "source", string(res.Source), "error", res.Err, "quarantined", res.Quarantined)
	}
	if err := engine.Restore(ctx, res.Snapshot); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	report, err := engine.Reconcile(ctx, defaults)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	log.Info("market catalog reconciled",
		"source", string(res.Source),
		"defaults_added", report.DefaultsAdded,
		"definitions_added", report.DefinitionsAdded,
	)

	if res.Source != persistence.SourceExisting || report.DefaultsAdded > 0 || report.DefinitionsAdded > 0 {
		return saveNow(ctx, engine, gateway)
	}
	return nil
}

func autosave(ctx context.Context, log *slog.Logger, engine *economy.Engine, gateway *persistence.Gateway, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := saveNow(ctx, engine, gateway); err != nil {
				log.Error("autosave failed", "error", err)
			}
		}
	}
}

func feedCommands(ctx context.Context, log *slog.Logger, engine *economy.Engine, path string) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			log.Error("open command feed", "path", path, "error", err)
			return
		}
		defer f.Close()
		r = f
	}

	n, err := ingest(ctx, log, r, engine)
	if err != nil {
		log.Error("command feed stopped", "path", path, "queued", n, "error", err)
		return
	}
	log.Info("command feed finished", "path", path, "queued", n)
}

func saveNow(ctx context.Context, engine *economy.Engine, gateway *persistence.Gateway) error {
	snap, err := engine.Snapshot(ctx)
	if err != nil {
		return err
	}
	return gateway.Save(snap)
}

func loadHost(log *slog.Logger, path string) (*memhost.Host, error) {
	if path == "" {
		log.Warn("no world file configured, running with an empty host")
		return memhost.NewHost(nil, 0), nil
	}
	host, err := memhost.LoadFile(path)
	if err != nil {
		return nil, err
	}
	log.Info("world loaded",
		"path", path,
		"definitions", len(host.PublicItemDefinitions()),
		"players", len(host.Players()),
	)
	return host, nil
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler), nil
}
