// Command coreplane is a demo entrypoint: it gathers values-only
// configuration from the environment (and an optional local .env file) and
// runs a single server controller until interrupted. Grounded on the
// reference pack's cmd/server/main.go (panic-recovery-wrapped startup,
// graceful shutdown on signal).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"go.squadwatch.dev/coreplane/internal/controller"
	"go.squadwatch.dev/coreplane/internal/eventbus"
	"go.squadwatch.dev/coreplane/internal/logger"
	"go.squadwatch.dev/coreplane/internal/logwatcher"
	"go.squadwatch.dev/coreplane/internal/plugin"
	"go.squadwatch.dev/coreplane/internal/rcon"
	"go.squadwatch.dev/coreplane/internal/sink"
)

// config is the demo entrypoint's flat value surface; the core itself
// never parses configuration — it only ever receives already-resolved
// values through controller.Config.
type config struct {
	ServerName string `default:"squad-server-1"`

	RCONHost     string        `default:"127.0.0.1"`
	RCONPort     int           `default:"21114"`
	RCONPassword string        `required:"true"`
	RCONTimeout  time.Duration `default:"10s"`

	LogMode     string `default:"tail"`
	LogDir      string `default:"."`
	LogFilename string `default:"SquadGame.log"`
	LogHost     string
	LogPort     int
	LogUser     string
	LogPassword string

	AdminConfigPath string `default:""`

	// An empty host disables the metrics-history sink.
	ClickHouseHost     string
	ClickHousePort     int    `default:"9000"`
	ClickHouseDatabase string `default:"squadwatch"`
	ClickHouseUser     string `default:"default"`
	ClickHousePassword string

	BridgeAddr string `default:":8090"`

	LogLevel string `default:"info"`
	LogFile  string `default:"stderr"`
	LogPretty bool  `default:"true"`
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	var cfg config
	var files []string
	if path := os.Getenv("COREPLANE_CONFIG_FILE"); path != "" {
		files = append(files, path)
	}
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "COREPLANE",
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
			".yml":  aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := logger.Setup(ctx, cfg.LogLevel, cfg.LogPretty, false, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("coreplane exited with error")
	}
}

func run(ctx context.Context, cfg config, log zerolog.Logger) error {
	ctrlCfg := controller.Config{
		Name: cfg.ServerName,
		RCON: rcon.EngineConfig{
			Connection: rcon.ConnectionConfig{
				Host:           cfg.RCONHost,
				Port:           cfg.RCONPort,
				ConnectTimeout: cfg.RCONTimeout,
				Reconnect: rcon.ReconnectConfig{
					Enabled:      true,
					InitialDelay: time.Second,
					MaxDelay:     30 * time.Second,
					Multiplier:   2,
					Jitter:       0.2,
				},
			},
			Command: rcon.CommandConfig{
				Timeout: 10 * time.Second,
				Retries: 2,
			},
			Heartbeat: rcon.HeartbeatConfig{
				Enabled:  true,
				Interval: 30 * time.Second,
				Command:  "ShowServerInfo",
			},
			Password: cfg.RCONPassword,
		},
		LogwatchSource: logwatcher.SourceConfig{
			Mode:         logwatcher.SourceMode(cfg.LogMode),
			LogDir:       cfg.LogDir,
			Filename:     cfg.LogFilename,
			Host:         cfg.LogHost,
			Port:         cfg.LogPort,
			User:         cfg.LogUser,
			Password:     cfg.LogPassword,
			PollInterval: time.Second,
			StartFromEnd: true,
		},
		Logwatch: logwatcher.ManagerConfig{
			QueueCapacity: 10000,
			HighWaterFrac: 0.8,
			BatchSize:     100,
			Cadence:       10 * time.Millisecond,
		},
		EventBus: eventbus.Config{MaxSubscribersPerKind: 100},
	}
	if cfg.AdminConfigPath != "" {
		ctrlCfg.AdminSources = []string{cfg.AdminConfigPath}
	}

	if cfg.ClickHouseHost != "" {
		metrics, err := sink.NewMetricsSink(sink.ClickHouseConfig{
			Host:     cfg.ClickHouseHost,
			Port:     cfg.ClickHousePort,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			return fmt.Errorf("failed to open metrics sink: %w", err)
		}
		defer metrics.Close()
		if err := metrics.Migrate(false); err != nil {
			return fmt.Errorf("failed to migrate metrics sink: %w", err)
		}
		ctrlCfg.Metrics = metrics
	}

	ctl, err := controller.New(ctrlCfg, log)
	if err != nil {
		return fmt.Errorf("failed to construct controller: %w", err)
	}

	if err := ctl.Start(ctx); err != nil {
		return fmt.Errorf("failed to start controller: %w", err)
	}
	log.Info().Str("server", ctl.Name).Msg("controller started")

	bridge := plugin.NewBridge(ctl.Bus, log)
	if err := bridge.Subscribe(); err != nil {
		return fmt.Errorf("failed to subscribe push bridge: %w", err)
	}
	defer bridge.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	bridge.RegisterRoutes(router)

	httpSrv := &http.Server{Addr: cfg.BridgeAddr, Handler: router}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("push bridge http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("push bridge http server did not shut down cleanly")
	}

	return ctl.Stop()
}
