// audioctl - event-driven controller for a headless home audio box.
//
// The daemon watches ALSA playback state, an infrared remote and the REST
// API, routes everything through a single in-process event bus, and drives
// the Bluetooth adapter and an infrared-controlled amplifier from the
// resulting events.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	_ "github.com/Moudilu/audio-controller/migrations"

	"github.com/Moudilu/audio-controller/internal/amplifier"
	"github.com/Moudilu/audio-controller/internal/api"
	"github.com/Moudilu/audio-controller/internal/audit"
	"github.com/Moudilu/audio-controller/internal/bluetooth"
	"github.com/Moudilu/audio-controller/internal/events"
	"github.com/Moudilu/audio-controller/internal/infrastructure/config"
	"github.com/Moudilu/audio-controller/internal/infrastructure/database"
	"github.com/Moudilu/audio-controller/internal/infrastructure/logging"
	"github.com/Moudilu/audio-controller/internal/playback"
	"github.com/Moudilu/audio-controller/internal/remote"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting audioctl",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database and run migrations
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path())

	auditRepo := audit.NewSQLiteRepository(db.DB)

	// The bus starts gated: components may fire during construction, those
	// events suspend until StartRouting below.
	bus := events.NewBus(log.With("component", "events"))

	// Amplifier controller
	if cfg.Amplifier.Enabled {
		ampLog := log.With("component", "amplifier")
		sender := amplifier.NewLircSender(cfg.Amplifier.LircSocket, ampLog)
		amp := amplifier.NewController(sender, bus,
			cfg.Amplifier.Remote,
			cfg.Amplifier.PowerOnCommand,
			cfg.Amplifier.PowerOffCommand,
			cfg.Amplifier.GetShutdownDelay(),
			ampLog,
		)
		if err := amp.Init(ctx); err != nil {
			return fmt.Errorf("initialising amplifier: %w", err)
		}
		defer amp.Close()
		log.Info("amplifier controller ready", "remote", cfg.Amplifier.Remote)
	} else {
		log.Info("amplifier disabled")
	}

	// Bluetooth pairing controller
	if cfg.Bluetooth.Enabled {
		btLog := log.With("component", "bluetooth")
		adapterName := fmt.Sprintf("hci%d", cfg.Bluetooth.Adapter)
		adapter, err := bluetooth.NewBlueZAdapter(adapterName, btLog)
		if err != nil {
			return fmt.Errorf("connecting to bluetooth adapter: %w", err)
		}
		defer func() {
			if closeErr := adapter.Close(); closeErr != nil {
				log.Error("error closing bluetooth connection", "error", closeErr)
			}
		}()

		bt := bluetooth.NewController(adapter, bus, auditRepo,
			cfg.Bluetooth.GetDiscoverableTimeout(), btLog)
		if err := bt.Init(ctx); err != nil {
			return fmt.Errorf("initialising bluetooth: %w", err)
		}
		defer bt.Close()

		if _, err := bluetooth.RegisterAgent(adapter, bt, btLog); err != nil {
			return fmt.Errorf("registering pairing agent: %w", err)
		}
		log.Info("bluetooth controller ready", "adapter", adapterName)
	} else {
		log.Info("bluetooth disabled")
	}

	// API server
	if cfg.API.Enabled {
		server, err := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.With("component", "api"),
			Bus:     bus,
			Audit:   auditRepo,
			Version: version,
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
	} else {
		log.Info("API server disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	// Playback monitors, one per configured PCM device
	for _, dev := range cfg.Playback.Devices {
		name := fmt.Sprintf("%s.%d", dev.Card, dev.Subdevice)
		probe := playback.NewALSAProbe(dev.Card, dev.Subdevice, log.With("component", "playback"))
		monitor := playback.NewMonitor(name, probe, bus,
			dev.GetPollInterval(), log.With("component", "playback"))
		g.Go(func() error {
			return monitor.Run(gctx)
		})
	}

	// Remote control key classifier
	if cfg.Remote.Enabled {
		remLog := log.With("component", "remote")
		source, err := remote.NewEvdevSource(cfg.Remote.Device, remLog)
		if err != nil {
			return fmt.Errorf("opening remote input device: %w", err)
		}
		defer func() {
			if closeErr := source.Close(); closeErr != nil {
				log.Error("error closing input device", "error", closeErr)
			}
		}()

		press, longPress := remote.DefaultKeyMap()
		classifier := remote.NewClassifier(cfg.Remote.Device, source, bus,
			cfg.Remote.GetLongPressThreshold(), press, longPress, remLog)
		g.Go(func() error {
			return classifier.Run(gctx)
		})
	} else {
		log.Info("remote disabled")
	}

	// Keeps the daemon alive even when no pollers are configured.
	g.Go(func() error {
		<-gctx.Done()
		return gctx.Err()
	})

	// Every component has subscribed; release suspended events.
	bus.StartRouting()
	log.Info("initialisation complete, event routing started")

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("audioctl stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses AUDIOCTL_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AUDIOCTL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
