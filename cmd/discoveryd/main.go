// Gray Logic Discovery - MQTT device discovery adapter
//
// This is the main entry point for the discovery adapter. It listens for
// Home Assistant style discovery announcements on an MQTT broker, creates
// matching records in the host device registry and keeps their values in
// step with the devices' state topics.
//
// For configuration, see: configs/config.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-discovery/migrations"

	"github.com/nerrad567/gray-logic-discovery/internal/api"
	"github.com/nerrad567/gray-logic-discovery/internal/device"
	"github.com/nerrad567/gray-logic-discovery/internal/discovery"
	"github.com/nerrad567/gray-logic-discovery/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-discovery/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-discovery/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-discovery/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-discovery/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
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
	log := logging.Default()
	log.Info("starting Gray Logic Discovery",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, cfg.Discovery.Verbosity, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"verbosity", cfg.Discovery.Verbosity,
	)

	// Deferred closes run in reverse order: InfluxDB, MQTT, database.
	db, err := database.Open(cfg.Database)
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
	log.Info("database ready", "path", cfg.Database.Path)

	deviceRegistry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	deviceRegistry.SetLogger(log)
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.DeviceCount())

	mqttClient, err := mqtt.New(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("creating MQTT client: %w", err)
	}
	mqttClient.SetLogger(log)
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	opts := []discovery.Option{discovery.WithLogger(log)}

	var influxClient *influxdb.Client
	var sink api.SinkStats
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
		opts = append(opts, discovery.WithListener(&metricsListener{writer: influxClient}))
		sink = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log)
		opts = append(opts, discovery.WithListener(hub))
	}

	orch, err := discovery.NewOrchestrator(settingsFromConfig(cfg), mqttClient, &registryAdapter{registry: deviceRegistry}, opts...)
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}
	if seedErr := orch.Seed(ctx); seedErr != nil {
		return fmt.Errorf("seeding device index: %w", seedErr)
	}

	mqttClient.SetMessageHandler(orch.OnMessage)
	mqttClient.SetOnConnect(orch.OnConnected)
	mqttClient.SetOnDisconnect(orch.OnDisconnected)
	mqttClient.SetOnSubscribed(orch.OnSubscribed)

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	if hub != nil {
		go hub.Run(runCtx)

		apiServer, apiErr := api.New(api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			Security:  cfg.Security,
			Logger:    log,
			Registry:  deviceRegistry,
			Topics:    orch.Index(),
			Stats:     orch.Stats(),
			ConnState: orch.State,
			Sink:      sink,
			Hub:       hub,
			Version:   version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(runCtx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	// The first attempt is asynchronous; the heartbeat retries while the
	// broker is unreachable.
	if connErr := mqttClient.Reconnect(); connErr != nil {
		log.Warn("initial MQTT connect request failed", "error", connErr)
	}
	log.Info("connecting to MQTT broker",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	done := make(chan error, 1)
	go func() { done <- orch.Run(runCtx) }()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	stopRun()
	if runErr := <-done; runErr != nil {
		log.Error("orchestrator stopped with error", "error", runErr)
	}

	log.Info("Gray Logic Discovery stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// settingsFromConfig builds the orchestrator settings from the loaded config.
func settingsFromConfig(cfg *config.Config) discovery.Settings {
	return discovery.Settings{
		Prefix:              cfg.Discovery.Prefix,
		IgnoredTopics:       cfg.Discovery.IgnoredTopics,
		DefaultDeviceActive: cfg.Discovery.DefaultDeviceActive,
		StatusPolls:         cfg.Discovery.StatusPolls,
		HeartbeatInterval:   cfg.GetHeartbeatInterval(),
	}
}
