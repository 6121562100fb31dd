package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/skillforge/watchroom/internal/broker"
	natsBroker "github.com/skillforge/watchroom/internal/broker/nats"
	redisBroker "github.com/skillforge/watchroom/internal/broker/redis"
	"github.com/skillforge/watchroom/internal/controller"
	"github.com/skillforge/watchroom/internal/repository/connection/inmemory"
	roomRedis "github.com/skillforge/watchroom/internal/repository/room/redis"
	"github.com/skillforge/watchroom/internal/service/room"
	"github.com/skillforge/watchroom/pkg/ctxlogger"
	"github.com/skillforge/watchroom/pkg/redisclient"
	"github.com/skillforge/watchroom/pkg/ytvideodata"
)

const (
	BrokerRedis = "redis"
	BrokerNATS  = "nats"
)

type AppConfig struct {
	Secret               string        `json:"-"`
	Host                 string        `json:"host"`
	Port                 int           `json:"port"`
	LogLevel             string        `json:"log_level"`
	DefaultCapacity      int           `json:"default_capacity"`
	MaxCapacity          int           `json:"max_capacity"`
	DefaultSyncThreshold float64       `json:"default_sync_threshold"`
	MessageHistory       int           `json:"message_history"`
	RoomTTL              time.Duration `json:"room_ttl"`
	TokenTTL             time.Duration `json:"token_ttl"`
	WSRate               float64       `json:"ws_rate"`
	WSBurst              int           `json:"ws_burst"`
	HTTPRate             int           `json:"http_rate"`
	RequestTimeout       time.Duration `json:"request_timeout"`
	VideoLookup          bool          `json:"video_lookup"`
	Broker               string        `json:"broker"`
	// NatsURL is optional; an in-process server is started when empty.
	NatsURL       string `json:"nats_url"`
	RedisPort     int    `json:"redis_port"`
	RedisHost     string `json:"redis_host"`
	RedisPassword string `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Secret == "" {
		return errors.New("secret must not be empty")
	}
	if cfg.DefaultCapacity < 1 {
		return errors.New("default capacity must be greater than 0")
	}
	if cfg.MaxCapacity < cfg.DefaultCapacity {
		return errors.New("max capacity must not be less than default capacity")
	}
	if cfg.DefaultSyncThreshold <= 0 {
		return errors.New("default sync threshold must be greater than 0")
	}
	if cfg.MessageHistory < 1 {
		return errors.New("message history must be greater than 0")
	}
	if cfg.RoomTTL <= 0 || cfg.TokenTTL <= 0 || cfg.RequestTimeout <= 0 {
		return errors.New("room ttl, token ttl and request timeout must be positive")
	}
	if cfg.WSRate <= 0 || cfg.WSBurst < 1 || cfg.HTTPRate < 1 {
		return errors.New("rate limits must be greater than 0")
	}
	switch cfg.Broker {
	case BrokerRedis, BrokerNATS:
	default:
		return fmt.Errorf("unknown broker %q", cfg.Broker)
	}
	return nil
}

// App is the fully wired server. Close releases everything it opened.
type App struct {
	handler http.Handler
	closers []func()
}

func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func New(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{}

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	a.closers = append(a.closers, func() { rc.Close() })

	b, err := a.newBroker(cfg, rc, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	var videos *ytvideodata.Resolver
	if cfg.VideoLookup {
		videos = ytvideodata.New()
	}

	roomRepo := roomRedis.NewRepo(rc, logger, cfg.RoomTTL)
	connectionRepo := inmemory.NewRepo()
	roomService := room.NewService(roomRepo, connectionRepo, b, resolver(videos), clockwork.NewRealClock(), logger, &room.Config{
		Secret:               cfg.Secret,
		DefaultCapacity:      cfg.DefaultCapacity,
		MaxCapacity:          cfg.MaxCapacity,
		DefaultSyncThreshold: cfg.DefaultSyncThreshold,
		MessageHistory:       cfg.MessageHistory,
		TokenTTL:             cfg.TokenTTL,
		RequestTimeout:       cfg.RequestTimeout,
	})
	controller := controller.NewController(roomService, logger, &controller.Config{
		WSRate:         cfg.WSRate,
		WSBurst:        cfg.WSBurst,
		HTTPRate:       cfg.HTTPRate,
		RequestTimeout: cfg.RequestTimeout,
	})
	a.handler = controller.GetMux()

	return a, nil
}

func (a *App) newBroker(cfg *AppConfig, rc *redis.Client, logger *slog.Logger) (broker.Broker, error) {
	var b broker.Broker
	switch cfg.Broker {
	case BrokerNATS:
		url := cfg.NatsURL
		if url == "" {
			ns, err := natsBroker.StartEmbeddedServer("127.0.0.1", -1)
			if err != nil {
				return nil, fmt.Errorf("failed to start embedded nats: %w", err)
			}
			a.closers = append(a.closers, ns.Shutdown)
			url = ns.ClientURL()
			logger.Info("started embedded nats server", "url", url)
		}

		nb, err := natsBroker.Connect(url, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		b = nb
	default:
		b = redisBroker.New(rc, logger)
	}

	a.closers = append(a.closers, func() {
		if err := b.Close(); err != nil {
			logger.Warn("failed to close broker", "error", err)
		}
	})

	return b, nil
}

// resolver keeps a nil *Resolver from becoming a non-nil interface.
func resolver(r *ytvideodata.Resolver) interface {
	Get(context.Context, string) (*ytvideodata.VideoData, error)
} {
	if r == nil {
		return nil
	}
	return r
}

func NewLogger(level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: a.Handler()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
