package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/runeshard/server/internal/accounts"
	"github.com/runeshard/server/internal/config"
	coresys "github.com/runeshard/server/internal/core/system"
	"github.com/runeshard/server/internal/entities"
	"github.com/runeshard/server/internal/movement"
	"github.com/runeshard/server/internal/observe"
	"github.com/runeshard/server/internal/persist"
	"github.com/runeshard/server/internal/scripting"
	"github.com/runeshard/server/internal/system"
	"github.com/runeshard/server/internal/terrain"
	"github.com/runeshard/server/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("RUNESHARD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Metrics
	shutdownMetrics, err := observe.InitProvider(context.Background(), observe.ProviderConfig{ServiceName: cfg.Server.Name})
	if err != nil {
		return fmt.Errorf("metrics provider: %w", err)
	}
	defer shutdownMetrics(context.Background())
	metrics := observe.DefaultMetrics()

	// 4. Terrain and maps
	printSection("terrain")
	tiles, err := terrain.LoadTileData(cfg.World.TileData)
	if err != nil {
		return fmt.Errorf("tiledata: %w", err)
	}
	landCount, itemCount := tiles.Counts()
	printStat("land tiles", landCount)
	printStat("item tiles", itemCount)

	loaded, err := terrain.LoadMapList(cfg.World.MapList, cfg.World.TileDir, log)
	if err != nil {
		return fmt.Errorf("maps: %w", err)
	}

	reg := world.NewTypeRegistry()
	entities.Register(reg)
	w := world.New(reg, log)
	for _, lm := range loaded {
		m, err := world.FromTerrain(lm, tiles, cfg.World.SectorSize)
		if err != nil {
			return fmt.Errorf("map %s: %w", lm.Def.Name, err)
		}
		if err := w.AddMap(m); err != nil {
			return err
		}
		printStat(m.Name(), m.Width()*m.Height())
	}
	if err := metrics.ObserveWorld(w); err != nil {
		return fmt.Errorf("world metrics: %w", err)
	}
	fmt.Println()

	// 5. Persistence, catalog and participants
	printSection("persistence")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	engine := persist.NewEngine(w, cfg.Persistence, log)
	engine.SetRecorder(metrics)

	if cfg.Catalog.Driver != "" {
		db, err := persist.NewDB(ctx, cfg.Catalog, log)
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		cat, err := persist.OpenCatalog(ctx, db)
		if err != nil {
			db.Close()
			return fmt.Errorf("catalog: %w", err)
		}
		defer cat.Close()
		engine.SetCatalog(cat)
		if last, ok, err := cat.Latest(ctx); err == nil && ok {
			log.Info("last recorded save",
				zap.Time("saved_at", last.SavedAt),
				zap.String("checksum", last.Checksum))
		}
		printOK("save catalog ready (" + cfg.Catalog.Driver + ")")
	}

	accts := accounts.NewTable()
	if err := engine.AddParticipant(accts); err != nil {
		return err
	}

	scripts, err := scripting.NewEngine(cfg.Scripting.Dir, w, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer scripts.Close()
	scripts.Attach(engine)
	// Deletes requested by load hooks run on the first tick.
	cleanup := system.NewCleanupSystem()
	scripts.SetDeleter(cleanup)

	info, err := engine.Load(ctx)
	if err != nil {
		return fmt.Errorf("load world: %w", err)
	}
	cancel()
	if info.Empty {
		printOK("no snapshot found, starting an empty world")
	} else {
		printStat("mobiles", info.Mobiles)
		printStat("items", info.Items)
		printStat("accounts", accts.Len())
		if info.Dropped > 0 {
			printStat("dropped on load", info.Dropped)
		}
	}
	fmt.Println()

	// 6. Metrics endpoint
	var metricsSrv *http.Server
	if cfg.Metrics.Address != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics endpoint", zap.Error(err))
			}
		}()
	}

	// 7. Systems
	queue := coresys.NewCommandQueue()
	autosave := system.NewAutosaveSystem(engine, cfg.Persistence.AutosaveInterval, log)
	validator := movement.NewValidator(log, metrics)

	runner := coresys.NewRunner()
	runner.Register(system.NewCommandSystem(queue, cfg.World.CommandQueue, log))
	runner.Register(system.NewWanderSystem(w, validator, cfg.World.WanderInterval, uint64(time.Now().UnixNano())))
	runner.Register(autosave)
	runner.Register(cleanup)

	// 8. Start game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	stopCh := make(chan struct{})
	go runConsole(os.Stdin, queue, consoleDeps{
		world:    w,
		accounts: accts,
		autosave: autosave,
		stop:     func() { close(stopCh) },
		log:      log,
	})

	ticker := time.NewTicker(cfg.World.TickRate)
	defer ticker.Stop()

	printSection("ready")
	if metricsSrv != nil {
		printReady("metrics on " + cfg.Metrics.Address + "/metrics")
	}
	printReady(fmt.Sprintf("game loop running (tick: %s)", cfg.World.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.World.TickRate)
			metrics.RecordTick()
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			return shutdown(runner, autosave, metricsSrv, cfg.World.TickRate, log)
		case <-stopCh:
			log.Info("shutdown requested from console")
			return shutdown(runner, autosave, metricsSrv, cfg.World.TickRate, log)
		}
	}
}

// shutdown drains pending commands, saves the world and stops the metrics
// endpoint.
func shutdown(runner *coresys.Runner, autosave *system.AutosaveSystem, metricsSrv *http.Server, dt time.Duration, log *zap.Logger) error {
	runner.TickPhase(coresys.PhaseInput, dt)
	runner.TickPhase(coresys.PhaseCleanup, dt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	saveErr := autosave.SaveNow(ctx)
	if saveErr != nil {
		log.Error("final save failed", zap.Error(saveErr))
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			log.Warn("metrics endpoint shutdown", zap.Error(err))
		}
	}
	log.Info("server stopped")
	return saveErr
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
