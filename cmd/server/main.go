package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/skillforge/watchroom/internal/app"
	"github.com/skillforge/watchroom/pkg/playback"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

var (
	secret = configVar[string]{
		envKey:       "SERVER_SECRET",
		flagKey:      "secret",
		defaultValue: "",
		usage:        "Server secret used to sign room tokens",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8080,
		usage:        "Server port",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	defaultCapacity = configVar[int]{
		envKey:       "SERVER_DEFAULT_CAPACITY",
		flagKey:      "default-capacity",
		defaultValue: 8,
		usage:        "Participant capacity of a room created without one",
	}
	maxCapacity = configVar[int]{
		envKey:       "SERVER_MAX_CAPACITY",
		flagKey:      "max-capacity",
		defaultValue: 50,
		usage:        "Largest participant capacity a room may ask for",
	}
	defaultSyncThreshold = configVar[float64]{
		envKey:       "SERVER_DEFAULT_SYNC_THRESHOLD",
		flagKey:      "default-sync-threshold",
		defaultValue: playback.DefaultSyncThreshold,
		usage:        "Drift in seconds tolerated before a follower seeks",
	}
	messageHistory = configVar[int]{
		envKey:       "SERVER_MESSAGE_HISTORY",
		flagKey:      "message-history",
		defaultValue: 50,
		usage:        "Number of chat messages kept per room",
	}
	roomTTL = configVar[time.Duration]{
		envKey:       "SERVER_ROOM_TTL",
		flagKey:      "room-ttl",
		defaultValue: 14 * 24 * time.Hour,
		usage:        "Idle time after which a room is dropped from the store",
	}
	tokenTTL = configVar[time.Duration]{
		envKey:       "SERVER_TOKEN_TTL",
		flagKey:      "token-ttl",
		defaultValue: 24 * time.Hour,
		usage:        "Lifetime of room tokens",
	}
	wsRate = configVar[float64]{
		envKey:       "SERVER_WS_RATE",
		flagKey:      "ws-rate",
		defaultValue: 20,
		usage:        "Inbound websocket messages per second per connection",
	}
	wsBurst = configVar[int]{
		envKey:       "SERVER_WS_BURST",
		flagKey:      "ws-burst",
		defaultValue: 40,
		usage:        "Inbound websocket burst per connection",
	}
	httpRate = configVar[int]{
		envKey:       "SERVER_HTTP_RATE",
		flagKey:      "http-rate",
		defaultValue: 100,
		usage:        "REST requests per minute per IP",
	}
	requestTimeout = configVar[time.Duration]{
		envKey:       "SERVER_REQUEST_TIMEOUT",
		flagKey:      "request-timeout",
		defaultValue: 10 * time.Second,
		usage:        "Timeout for store calls and best-effort writes",
	}
	videoLookup = configVar[bool]{
		envKey:       "SERVER_VIDEO_LOOKUP",
		flagKey:      "video-lookup",
		defaultValue: true,
		usage:        "Look up missing video titles on YouTube",
	}
	brokerKind = configVar[string]{
		envKey:       "SERVER_BROKER",
		flagKey:      "broker",
		defaultValue: app.BrokerRedis,
		usage:        "Event broker: redis or nats",
	}
	natsURL = configVar[string]{
		envKey:       "NATS_URL",
		flagKey:      "nats-url",
		defaultValue: "",
		usage:        "NATS url, an embedded server is started when empty",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
		usage:        "Redis password",
	}
)

// bind registers the flag, its env var and its default with viper.
func bind[T any](v configVar[T], register func(name string, value T, usage string) *T) {
	register(v.flagKey, v.defaultValue, v.usage)
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	bind(secret, pflag.String)
	bind(host, pflag.String)
	bind(port, pflag.Int)
	bind(logLevel, pflag.String)
	bind(defaultCapacity, pflag.Int)
	bind(maxCapacity, pflag.Int)
	bind(defaultSyncThreshold, pflag.Float64)
	bind(messageHistory, pflag.Int)
	bind(roomTTL, pflag.Duration)
	bind(tokenTTL, pflag.Duration)
	bind(wsRate, pflag.Float64)
	bind(wsBurst, pflag.Int)
	bind(httpRate, pflag.Int)
	bind(requestTimeout, pflag.Duration)
	bind(videoLookup, pflag.Bool)
	bind(brokerKind, pflag.String)
	bind(natsURL, pflag.String)
	bind(redisPort, pflag.Int)
	bind(redisHost, pflag.String)
	bind(redisPassword, pflag.String)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	return &app.AppConfig{
		Secret:               viper.GetString(secret.flagKey),
		Host:                 viper.GetString(host.flagKey),
		Port:                 viper.GetInt(port.flagKey),
		LogLevel:             viper.GetString(logLevel.flagKey),
		DefaultCapacity:      viper.GetInt(defaultCapacity.flagKey),
		MaxCapacity:          viper.GetInt(maxCapacity.flagKey),
		DefaultSyncThreshold: viper.GetFloat64(defaultSyncThreshold.flagKey),
		MessageHistory:       viper.GetInt(messageHistory.flagKey),
		RoomTTL:              viper.GetDuration(roomTTL.flagKey),
		TokenTTL:             viper.GetDuration(tokenTTL.flagKey),
		WSRate:               viper.GetFloat64(wsRate.flagKey),
		WSBurst:              viper.GetInt(wsBurst.flagKey),
		HTTPRate:             viper.GetInt(httpRate.flagKey),
		RequestTimeout:       viper.GetDuration(requestTimeout.flagKey),
		VideoLookup:          viper.GetBool(videoLookup.flagKey),
		Broker:               viper.GetString(brokerKind.flagKey),
		NatsURL:              viper.GetString(natsURL.flagKey),
		RedisPort:            viper.GetInt(redisPort.flagKey),
		RedisHost:            viper.GetString(redisHost.flagKey),
		RedisPassword:        viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatal(err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	if err := app.Run(ctx, appConfig); err != nil {
		log.Fatal(err)
	}
}
