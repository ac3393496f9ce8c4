// DEWHOME Core - GPIO home automation controller
//
// This is the main entry point for the DEWHOME Core service. It binds
// relays and other outputs on a Raspberry Pi header to named devices,
// runs scheduled actions against them and serves the REST/WebSocket API.
//
// Usage:
//
//	dewhome --config configs/config.yaml
//	echo 'secret' | dewhome --hash-password
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	_ "github.com/dewansh/dewhome-core/migrations"

	"github.com/dewansh/dewhome-core/internal/api"
	"github.com/dewansh/dewhome-core/internal/audit"
	"github.com/dewansh/dewhome-core/internal/auth"
	"github.com/dewansh/dewhome-core/internal/automation"
	"github.com/dewansh/dewhome-core/internal/bridge"
	"github.com/dewansh/dewhome-core/internal/device"
	"github.com/dewansh/dewhome-core/internal/gpio"
	"github.com/dewansh/dewhome-core/internal/infrastructure/config"
	"github.com/dewansh/dewhome-core/internal/infrastructure/database"
	"github.com/dewansh/dewhome-core/internal/infrastructure/influxdb"
	"github.com/dewansh/dewhome-core/internal/infrastructure/logging"
	"github.com/dewansh/dewhome-core/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	defaultConfigPath = "configs/config.yaml"
	shutdownTimeout   = 15 * time.Second
)

func main() {
	flags := pflag.NewFlagSet("dewhome", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to the YAML configuration file (env DEWHOME_CONFIG)")
	hashPassword := flags.Bool("hash-password", false, "read a password from stdin, print its hash and exit")
	showVersion := flags.BoolP("version", "v", false, "print version information and exit")
	_ = flags.Parse(os.Args[1:]) //nolint:errcheck // ExitOnError handles failures

	switch {
	case *showVersion:
		fmt.Printf("dewhome %s (commit %s, built %s)\n", version, commit, date)
		return
	case *hashPassword:
		if err := printPasswordHash(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Cancel on Ctrl+C and SIGTERM so every component shuts down in order.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, resolveConfigPath(*configPath)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled or the API
// server fails. Returning an error lets main choose the exit code.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting DEWHOME Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, cfg.Site.ID, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	schema, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	log.Info("database ready", "path", db.Path(), "schema", schema)

	// GPIO driver and devices
	driver, err := gpio.New(cfg.GPIO.Driver, cfg.GPIO.ActiveLow)
	if err != nil {
		return fmt.Errorf("creating gpio driver: %w", err)
	}
	defer func() {
		log.Info("releasing gpio lines")
		if closeErr := driver.Close(); closeErr != nil {
			log.Error("error releasing gpio lines", "error", closeErr)
		}
	}()

	catalog := gpio.NewCatalog(cfg.GPIO.ReservedPins)
	devices, err := startDevices(ctx, cfg, db, catalog, driver, log)
	if err != nil {
		return err
	}

	// Scheduled actions
	actionRepo := automation.NewSQLiteRepository(db.DB)
	actions := automation.NewRegistry(actionRepo, devices.Registry())
	actions.SetLogger(log)
	if refreshErr := actions.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading actions: %w", refreshErr)
	}

	engine := automation.NewEngine(actions, devices, actionRepo)
	engine.SetLogger(log)
	engine.SetTimeout(cfg.GetExecutionTimeout())

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("loading scheduler timezone: %w", err)
	}
	scheduler := automation.NewScheduler(engine, actions, loc)
	scheduler.SetLogger(log)

	checks := map[string]api.HealthChecker{"database": db}

	// MQTT and InfluxDB are optional; a failed connection degrades health
	// instead of stopping the controller.
	mqttClient := connectMQTT(cfg, log)
	if mqttClient != nil {
		checks["mqtt"] = mqttClient
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	influxClient := connectInfluxDB(cfg, log)
	if influxClient != nil {
		checks["influxdb"] = influxClient
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	if mqttClient != nil || influxClient != nil {
		br, brErr := startBridge(ctx, cfg, mqttClient, influxClient, devices, log)
		if brErr != nil {
			return brErr
		}
		defer func() {
			log.Info("stopping bridge", "dropped", br.Dropped())
			br.Stop()
		}()
		devices.AddObserver(br)
		engine.AddObserver(br)
	}

	// API
	var authenticator *auth.Authenticator
	if cfg.Security.Auth.Enabled {
		authenticator, err = auth.NewAuthenticator(
			cfg.Security.Auth.Username,
			cfg.Security.Auth.PasswordHash,
			cfg.Security.JWT.Secret,
			time.Duration(cfg.Security.JWT.AccessTokenTTL)*time.Minute,
		)
		if err != nil {
			return fmt.Errorf("creating authenticator: %w", err)
		}
	} else {
		log.Warn("API authentication disabled")
	}

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Logger:    log,
		Devices:   devices,
		Catalog:   catalog,
		Actions:   actions,
		Scheduler: scheduler,
		Auth:      authenticator,
		Audit:     audit.NewSQLiteRepository(db.DB),
		Checks:    checks,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	devices.AddObserver(server)
	engine.AddObserver(server)

	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	log.Info("scheduler started",
		"timezone", loc.String(),
		"actions", actions.GetActionCount(),
	)

	if err := server.Start(ctx); err != nil {
		stopScheduler(scheduler, log)
		return fmt.Errorf("starting API server: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case serveErr := <-server.Done():
			if serveErr == nil {
				serveErr = errors.New("listener closed")
			}
			return fmt.Errorf("API server: %w", serveErr)
		case <-gctx.Done():
		}
		return server.Close()
	})
	g.Go(func() error {
		<-gctx.Done()
		return stopScheduler(scheduler, log)
	})

	err = g.Wait()

	// Remaining deferred calls run in reverse order:
	// bridge, InfluxDB, MQTT, gpio lines, database.
	log.Info("DEWHOME Core stopping")
	return err
}

// startDevices loads the device registry, seeds an empty installation and
// drives every pin to its start-up level.
func startDevices(ctx context.Context, cfg *config.Config, db *database.DB,
	catalog *gpio.Catalog, driver gpio.Driver, log *logging.Logger) (*device.Controller, error) {
	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB), catalog)
	registry.SetLogger(log)
	if err := registry.RefreshCache(ctx); err != nil {
		return nil, fmt.Errorf("loading device registry: %w", err)
	}

	controller := device.NewController(registry, driver)
	controller.SetLogger(log)

	seeds := make([]device.Device, 0, len(cfg.GPIO.SeedDevices))
	for _, s := range cfg.GPIO.SeedDevices {
		seeds = append(seeds, device.Device{Name: s.Name, Icon: s.Icon, PinNumber: s.PinNumber})
	}
	seeded, err := controller.Seed(ctx, seeds)
	if err != nil {
		return nil, fmt.Errorf("seeding devices: %w", err)
	}
	if seeded > 0 {
		log.Info("seeded default devices", "count", seeded)
	}

	if err := controller.Init(ctx, cfg.GPIO.RestoreState); err != nil {
		return nil, fmt.Errorf("initialising gpio outputs: %w", err)
	}
	log.Info("devices initialised",
		"driver", driver.Name(),
		"devices", registry.GetDeviceCount(),
		"restore_state", cfg.GPIO.RestoreState,
	)
	return controller, nil
}

// connectMQTT returns nil when MQTT is disabled or unreachable.
func connectMQTT(cfg *config.Config, log *logging.Logger) *mqtt.Client {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT disabled")
		return nil
	}
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		log.Warn("MQTT unavailable, continuing without it",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"error", err,
		)
		return nil
	}
	client.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client
}

// connectInfluxDB returns nil when InfluxDB is disabled or unreachable.
func connectInfluxDB(cfg *config.Config, log *logging.Logger) *influxdb.Client {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil
	}
	client, err := influxdb.Connect(cfg.InfluxDB)
	if err != nil {
		log.Warn("InfluxDB unavailable, continuing without telemetry", "url", cfg.InfluxDB.URL, "error", err)
		return nil
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client
}

// startBridge mirrors device and action events to MQTT and InfluxDB.
// Either client may be nil.
func startBridge(ctx context.Context, cfg *config.Config, mqttClient *mqtt.Client,
	influxClient *influxdb.Client, devices *device.Controller, log *logging.Logger) (*bridge.Bridge, error) {
	opts := bridge.Options{
		Devices: devices,
		Lister:  devices.Registry(),
		QoS:     byte(cfg.MQTT.QoS),
	}
	// Assign only non-nil clients so the interfaces stay nil.
	if mqttClient != nil {
		opts.MQTT = mqttClient
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
	}

	br := bridge.New(opts)
	br.SetLogger(log)
	if err := br.Start(ctx); err != nil {
		br.Stop()
		return nil, fmt.Errorf("starting bridge: %w", err)
	}
	return br, nil
}

func stopScheduler(s *automation.Scheduler, log *logging.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info("stopping scheduler")
	if err := s.Stop(ctx); err != nil {
		return fmt.Errorf("stopping scheduler: %w", err)
	}
	return nil
}

// resolveConfigPath prefers the flag, then DEWHOME_CONFIG, then the default.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("DEWHOME_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// printPasswordHash reads one line from in and writes its hash for
// security.auth.password_hash.
func printPasswordHash(in io.Reader, out io.Writer) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("password is empty")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}
