// Quantum Task Core - quantum task submission service.
//
// This is the main entry point. It loads configuration, opens the task
// store, seeds devices, connects the optional MQTT and InfluxDB sinks and
// serves the user and provider HTTP APIs until a shutdown signal arrives.
//
// The "token" subcommand mints a bearer token for local testing:
//
//	qtaskcore token -owner alice -role user -ttl 1h
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "github.com/nerrad567/quantum-task-core/migrations"

	"github.com/nerrad567/quantum-task-core/internal/api"
	"github.com/nerrad567/quantum-task-core/internal/auth"
	"github.com/nerrad567/quantum-task-core/internal/device"
	"github.com/nerrad567/quantum-task-core/internal/events"
	"github.com/nerrad567/quantum-task-core/internal/infrastructure/config"
	"github.com/nerrad567/quantum-task-core/internal/infrastructure/database"
	"github.com/nerrad567/quantum-task-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/quantum-task-core/internal/infrastructure/logging"
	"github.com/nerrad567/quantum-task-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/quantum-task-core/internal/infrastructure/secrets"
	"github.com/nerrad567/quantum-task-core/internal/infrastructure/telemetry"
	"github.com/nerrad567/quantum-task-core/internal/result"
	"github.com/nerrad567/quantum-task-core/internal/task"
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

// shutdownTimeout bounds the telemetry flush on exit.
const shutdownTimeout = 5 * time.Second

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load() //nolint:errcheck // optional file

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

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
	log.Info("starting Quantum Task Core",
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

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, version, os.Stdout)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := tel.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error("error flushing telemetry", "error", shutdownErr)
		}
	}()

	// Reinitialise logger with config settings; log records go through the
	// OTel bridge when telemetry logs are enabled.
	if h := tel.LogHandler(); h != nil {
		log = logging.NewWithHandler(h, version)
	} else {
		log = logging.New(cfg.Logging, version)
	}
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"telemetry", cfg.Telemetry.Enabled,
	)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "driver", db.Dialect(), "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	devices := device.NewSQLRepository(db)
	tasks := task.NewSQLRepository(db)
	results := result.NewSQLRepository(db)

	if cfg.Devices.SeedFile != "" {
		seed, seedErr := device.LoadSeedFile(cfg.Devices.SeedFile)
		if seedErr != nil {
			return fmt.Errorf("loading device seed: %w", seedErr)
		}
		if seedErr = device.Seed(ctx, devices, seed); seedErr != nil {
			return fmt.Errorf("seeding devices: %w", seedErr)
		}
		log.Info("devices seeded", "file", cfg.Devices.SeedFile, "count", len(seed))
	}

	dispatcher := events.NewDispatcher(log, events.NewMetricsSink(tel.Instruments))

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		dispatcher.Register(events.NewMQTTSink(mqttClient))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		dispatcher.Register(events.NewInfluxSink(influxClient))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Stopped after the API server and before the sinks close, draining
	// whatever the last requests queued.
	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(ctx))
	dispatcher.Start(dispatchCtx)
	defer func() {
		stopDispatch()
		dispatcher.Wait()
		log.Info("event dispatcher stopped")
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	srv, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Logger:    log,
		Devices:   devices,
		Tasks:     tasks,
		Results:   results,
		DB:        db,
		Events:    dispatcher,
		Telemetry: tel,
		MQTT:      mqttClient,
		InfluxDB:  influxClient,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("event sinks registered", "sinks", dispatcher.Sinks())

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred functions run in reverse order: API, dispatcher, InfluxDB, MQTT, database, telemetry.
	log.Info("Quantum Task Core stopped")
	return nil
}

// openDatabase resolves credentials for PostgreSQL and opens the store.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	dbCfg := database.Config{
		Driver:       cfg.Database.Driver,
		Path:         cfg.Database.Path,
		WALMode:      cfg.Database.WALMode,
		BusyTimeout:  cfg.Database.BusyTimeout,
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		Name:         cfg.Database.Name,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConn,
	}

	if cfg.Database.Driver == config.DriverPostgres {
		creds, err := secrets.New(cfg.Secrets).Credentials(ctx, cfg.Database.SecretName)
		if err != nil {
			return nil, fmt.Errorf("resolving database credentials: %w", err)
		}
		dbCfg.Credentials = database.Credentials{
			Username: creds.Username,
			Password: creds.Password,
		}
	}

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// getConfigPath returns the configuration file path.
// Checks QTASK_CONFIG environment variable first, then uses default.
func getConfigPath() string {
	if path := os.Getenv("QTASK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all connected services are healthy.
// Optional clients are skipped when nil.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// runToken mints a signed access token and writes it to out.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	owner := fs.String("owner", "", "token subject (task owner)")
	role := fs.String("role", string(auth.RoleUser), "user or provider")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *owner == "" {
		return errors.New("-owner is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	token, err := auth.GenerateAccessToken(*owner, auth.Role(*role), cfg.Security.JWT.Secret, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}
