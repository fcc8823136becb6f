package main

import (
	"context"
	"net/http"

	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/boardbeam/backend/gateway"
	"github.com/boardbeam/backend/gateway/directory"
	"github.com/boardbeam/backend/gateway/registry"
	"github.com/boardbeam/backend/gateway/signal"
	"github.com/boardbeam/backend/gateway/transport"
	"github.com/boardbeam/backend/internal/config"
	"github.com/boardbeam/backend/internal/httputil"
	wsrpc "github.com/boardbeam/backend/internal/jsonrpc/websocket"
	"github.com/boardbeam/backend/internal/log"
	"github.com/boardbeam/backend/internal/otel"
	"github.com/boardbeam/backend/internal/redis"
	streamredis "github.com/boardbeam/backend/internal/stream/redis"
	"github.com/boardbeam/backend/internal/workflow"
)

type Config struct {
	App       config.App              `mapstructure:"app"`
	WSHttp    httputil.Config         `mapstructure:"ws_http"`
	APIHttp   httputil.Config         `mapstructure:"api_http"`
	Redis     redis.Config            `mapstructure:"redis"`
	Otel      otel.Config             `mapstructure:"otel"`
	Registry  registry.Config         `mapstructure:"registry"`
	Relay     signal.Config           `mapstructure:"relay"`
	Directory directory.Config        `mapstructure:"directory"`
	Updater   transport.UpdaterConfig `mapstructure:"updater"`

	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func loadConfig() (*Config, error) {
	return config.Load(&Config{}, func(v *viper.Viper) {
		v.SetDefault("allowed_origins", []string{"*"})

		config.Setup(v, "app")
		redis.Setup(v, "redis")
		otel.Setup(v, "otel", "gateway")
		registry.Setup(v, "registry")
		signal.Setup(v, "relay")
		directory.Setup(v, "directory")
		transport.SetupUpdater(v, "updater")
		httputil.Setup(v, "ws_http", "0.0.0.0:8081")
		httputil.Setup(v, "api_http", "0.0.0.0:8080")
	})
}

func main() {
	config, err := loadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", err)
	}

	logger, err := log.NewLogger(config.App.LogConfigFile)
	if err != nil {
		log.Fatal("Failed to create logger", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelShutdown, err := otel.Init(ctx, &config.Otel, logger)
	if err != nil {
		logger.Fatal("Failed to initialize OTEL provider", log.Error(err))
	}

	logger.Info("Starting Gateway...")

	// the directory mirror is optional, the registry works without it
	var (
		observer    gateway.RoomObserver
		roomLister  transport.RoomLister
		dir         *directory.Directory
		redisClient = redis.NewClient(&config.Redis)
	)
	if config.Directory.Enabled {
		if err := redis.Ping(ctx, redisClient); err != nil {
			logger.Fatal("Failed to connect to Redis", log.Error(err))
		}
		forever := redis.NewForever(redisClient, 0, 0, logger.Module("Redis"))
		var opts []directory.Option
		if config.Directory.EventsMaxLen > 0 {
			events, err := streamredis.NewProducer(redisClient, config.Directory.EventsStream(),
				config.Directory.EventsMaxLen, logger.Module("Events"))
			if err != nil {
				logger.Fatal("Failed to create room event stream", log.Error(err))
			}
			opts = append(opts, directory.WithEvents(events))
		}
		dir = directory.New(forever, &config.Directory, logger.Module("Directory"), opts...)
		if err := dir.Start(ctx); err != nil {
			logger.Fatal("Failed to start room directory", log.Error(err))
		}
		observer, roomLister = dir, dir
	}

	connMgr := signal.NewConnManager(logger.Module("ConnMgr"))

	reg := registry.New(&config.Registry, connMgr, observer, logger.Module("Registry"))
	reg.Start(ctx)

	hook := signal.NewWSHook(
		connMgr,
		reg,
		&config.Relay,
		logger.Module("WSHook"),
	)
	wsRPCServer := wsrpc.NewServer(
		hook,
		config.AllowedOrigins,
		logger.Module("WSRPC"),
	)
	relay := signal.NewRelay(
		reg,
		connMgr,
		config.Relay.SameRoomOnly,
		logger.Module("Relay"),
	)
	signalServer := signal.NewServer(
		wsRPCServer,
		reg,
		relay,
		logger.Module("Signal"),
	)
	if err := signalServer.Open(ctx); err != nil {
		logger.Fatal("Failed to open Signal Server", log.Error(err))
	}

	router := transport.NewRouter(
		reg,
		roomLister,
		transport.NewUpdater(&config.Updater, logger.Module("Updater")),
		config.AllowedOrigins,
		logger.Module("Router"),
	)

	wsMux := http.NewServeMux()
	wsMux.HandleFunc("/ws", wsRPCServer.HandleWebSocket)
	wsServer := httputil.NewServer(&config.WSHttp, wsMux)
	apiServer := httputil.NewServer(&config.APIHttp, router.Handler())

	g := new(errgroup.Group)
	g.Go(func() error {
		logger.Info("Starting WebSocket server", log.String("addr", config.WSHttp.Addr))
		return wsServer.Serve()
	})
	g.Go(func() error {
		logger.Info("Starting API server", log.String("addr", config.APIHttp.Addr))
		return apiServer.Serve()
	})
	go func() {
		if err := g.Wait(); err != nil {
			logger.Fatal("HTTP server failed", log.Error(err))
		}
	}()

	// Graceful shutdown
	cleanup := func(ctx context.Context) {
		_ = wsServer.Shutdown(ctx)
		_ = apiServer.Shutdown(ctx)

		connMgr.CloseAll()
		_ = signalServer.Close()

		cancel()
		select {
		case <-reg.Done():
		case <-ctx.Done():
		}
		if dir != nil {
			select {
			case <-dir.Done():
			case <-ctx.Done():
			}
		}

		if err := redisClient.Close(); err != nil {
			logger.Error("Error closing Redis client", log.Error(err))
		}
		if err := otelShutdown(ctx); err != nil {
			logger.Error("Failed to shutdown OTEL", log.Error(err))
		}
	}
	workflow.AwaitShutdown(ctx, logger.Module("CleanUp"), config.App.ShutdownTimeout, cleanup)
}
