// boxsync - set-top box state sync engine
//
// This is the main entry point for boxsync. It logs in to the operator
// account, discovers the household's set-top boxes, keeps their power and
// playback state in sync over the household message broker and, when
// enabled, exposes a local HTTP control API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/boxsync/internal/api"
	"github.com/nerrad567/boxsync/internal/bridges/horizon"
	"github.com/nerrad567/boxsync/internal/catalog"
	"github.com/nerrad567/boxsync/internal/device"
	"github.com/nerrad567/boxsync/internal/infrastructure/config"
	"github.com/nerrad567/boxsync/internal/infrastructure/influxdb"
	"github.com/nerrad567/boxsync/internal/infrastructure/logging"
	"github.com/nerrad567/boxsync/internal/infrastructure/mqtt"
	"github.com/nerrad567/boxsync/internal/provider"
	"github.com/nerrad567/boxsync/internal/session"
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

// statsInterval is how often registry statistics are written to InfluxDB.
const statsInterval = time.Minute

// shutdownTimeout bounds waiting for an in-flight catalog refresh on exit.
const shutdownTimeout = 5 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
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
	log.Info("starting boxsync",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Credentials usually live in .env; a missing file is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("could not load .env file", "error", err)
	}

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"country", cfg.Provider.Country,
		"level", cfg.Logging.Level,
	)

	// Provider HTTP client and session
	providerClient, err := provider.New(provider.Options{
		BaseURL:            cfg.Provider.APIURL,
		PersonalizationURL: cfg.Provider.PersonalizationURL,
		Username:           cfg.Provider.Username,
		Timeout:            cfg.GetRequestTimeout(),
	})
	if err != nil {
		return fmt.Errorf("creating provider client: %w", err)
	}

	sessions, err := session.NewManager(providerClient, cfg.Provider.Username, cfg.Provider.Password, log.Component("session"))
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}
	sessions.SetOnRenew(func(c session.Credentials) {
		providerClient.SetSession(c.Session)
	})

	creds, err := sessions.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}
	log.Info("session acquired", "household_id", creds.Session.HouseholdID, "token_expiry", creds.TokenExpiry)

	// Channel catalog and box enumeration run concurrently.
	catalogCache := catalog.New(providerClient, extraChannels(cfg.Catalog.ExtraChannels)...)
	boxes, err := discover(ctx, catalogCache, providerClient, log)
	if err != nil {
		return err
	}

	registry := device.NewRegistry()
	registry.SetLogger(log.Component("registry"))

	// Broker transport
	clientID := cfg.MQTT.Broker.ClientID
	if clientID == "" {
		clientID = horizon.NewClientID()
	}
	mqttClient := mqtt.New(cfg.MQTT, clientID)
	mqttClient.SetLogger(log.Component("mqtt"))
	defer func() {
		log.Info("closing broker client")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing broker client", "error", closeErr)
		}
	}()

	// Connect to InfluxDB (optional)
	influxClient, err := connectInflux(ctx, cfg.InfluxDB, log)
	if err != nil {
		return err
	}
	var metrics horizon.Metrics
	if influxClient != nil {
		metrics = influxClient
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	// Horizon bridge
	bridge, err := horizon.NewBridge(horizon.BridgeOptions{
		MQTT:          mqttClient,
		Sessions:      sessions,
		Registry:      registry,
		Catalog:       catalogCache,
		Lookup:        providerClient,
		Metrics:       metrics,
		Logger:        log.Component("horizon"),
		LookupTimeout: cfg.GetLookupTimeout(),
	})
	if err != nil {
		return fmt.Errorf("creating horizon bridge: %w", err)
	}
	for _, box := range boxes {
		if _, regErr := bridge.RegisterDevice(box.DeviceID, box.Name); regErr != nil {
			log.Warn("skipping set-top box", "device_id", box.DeviceID, "error", regErr)
		}
	}

	lost := make(chan struct{}, 1)
	bridge.SetOnDisconnect(func(error) {
		select {
		case lost <- struct{}{}:
		default:
		}
	})

	if startErr := bridge.Start(); startErr != nil {
		return fmt.Errorf("starting horizon bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping horizon bridge")
		bridge.Stop()
	}()

	if connErr := bridge.Connect(ctx); connErr != nil {
		if !cfg.MQTT.Reconnect.Enabled || isFatalConnectError(connErr) {
			return fmt.Errorf("connecting to broker: %w", connErr)
		}
		log.Warn("initial broker connection failed, will retry", "error", connErr)
		lost <- struct{}{}
	} else {
		log.Info("broker connected", "client_id", clientID, "devices", registry.Count())
	}

	// Periodic catalog refresh
	if cfg.Catalog.RefreshSchedule != "" {
		refresher, refErr := catalog.NewRefresher(catalogCache, cfg.Catalog.RefreshSchedule, log.Component("catalog"))
		if refErr != nil {
			return fmt.Errorf("creating catalog refresher: %w", refErr)
		}
		refresher.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			refresher.Stop(stopCtx)
		}()
		log.Info("catalog refresh scheduled", "schedule", cfg.Catalog.RefreshSchedule)
	}

	// HTTP control API (optional)
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log.Component("api"),
			Registry: registry,
			Bridge:   bridge,
			Catalog:  catalogCache,
			Sessions: sessions,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
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

	// Verify optional components are healthy
	if err := healthCheck(ctx, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return superviseConnection(gctx, bridge, lost, cfg.MQTT.Reconnect, log.Component("supervisor"))
	})
	if influxClient != nil {
		g.Go(func() error {
			writeStats(gctx, influxClient, registry)
			return nil
		})
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-gctx.Done()
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server (if enabled)
	// 2. Catalog refresher
	// 3. Horizon bridge
	// 4. InfluxDB (if enabled)
	// 5. Broker client

	log.Info("boxsync stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses BOXSYNC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BOXSYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// extraChannels converts configured extra channels to catalog entries.
func extraChannels(cfg []config.ExtraChannelConfig) []catalog.ChannelInfo {
	out := make([]catalog.ChannelInfo, 0, len(cfg))
	for _, ch := range cfg {
		out = append(out, catalog.ChannelInfo{
			ServiceID:     ch.ServiceID,
			Title:         ch.Title,
			ChannelNumber: ch.ChannelNumber,
		})
	}
	return out
}

// boxLister enumerates the household's set-top boxes.
type boxLister interface {
	FetchSettopBoxes(ctx context.Context) ([]provider.SettopBox, error)
}

// discover loads the channel catalog and the box list in parallel.
//
// A catalog failure is logged and tolerated; the scheduled refresh will
// retry. A box enumeration failure is returned.
func discover(ctx context.Context, cache *catalog.Cache, lister boxLister, log *logging.Logger) ([]provider.SettopBox, error) {
	var boxes []provider.SettopBox

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := cache.Refresh(gctx); err != nil {
			log.Warn("initial catalog refresh failed", "error", err)
			return nil
		}
		log.Info("catalog loaded", "channels", cache.Len())
		return nil
	})
	g.Go(func() error {
		var err error
		boxes, err = lister.FetchSettopBoxes(gctx)
		if err != nil {
			return fmt.Errorf("listing set-top boxes: %w", err)
		}
		log.Info("set-top boxes discovered", "count", len(boxes))
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return boxes, nil
}

// connectInflux connects to InfluxDB when enabled.
//
// Returns:
//   - *influxdb.Client: nil when InfluxDB is disabled
//   - error: If InfluxDB is enabled but unreachable
func connectInflux(ctx context.Context, cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(ctx, cfg)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client, nil
}

// writeStats writes registry statistics until ctx is cancelled.
func writeStats(ctx context.Context, client *influxdb.Client, registry *device.Registry) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			client.WriteRegistryStats(registry.Stats())
		}
	}
}

// healthCheck verifies optional components are healthy.
//
// The broker is not checked; an unreachable broker is retried by the
// connection supervisor.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//   - apiServer: API server to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, influxClient *influxdb.Client, apiServer *api.Server) error {
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if apiServer != nil {
		if err := apiServer.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}

	return nil
}
