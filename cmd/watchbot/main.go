// Command watchbot joins a room as a simulated viewer. It follows the room
// timeline with a clock-driven player and, when it creates the room, hosts
// it: starting playback and emitting heartbeats.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/skillforge/watchroom/pkg/playback"
	"github.com/skillforge/watchroom/pkg/watchclient"
)

type config struct {
	ServerURL string
	RoomID    string
	Password  string
	AuthToken string
	UserID    string
	Username  string
	VideoURL  string
	Duration  float64
	Heartbeat time.Duration
}

func loadConfig() config {
	pflag.String("server-url", "http://localhost:8080", "Watchroom server url")
	pflag.String("room-id", "", "Room to join, a new room is created when empty")
	pflag.String("password", "", "Room password")
	pflag.String("auth-token", "", "Token of an earlier join, required to rejoin as the same user")
	pflag.String("user-id", "watchbot", "User id of the bot")
	pflag.String("username", "watchbot", "Display name of the bot")
	pflag.String("video-url", "https://youtu.be/dQw4w9WgXcQ", "Video of a created room")
	pflag.Float64("duration", 600, "Video duration in seconds")
	pflag.Duration("heartbeat", 5*time.Second, "Host heartbeat interval")
	pflag.Parse()

	viper.SetEnvPrefix("WATCHBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.BindPFlags(pflag.CommandLine)

	return config{
		ServerURL: viper.GetString("server-url"),
		RoomID:    viper.GetString("room-id"),
		Password:  viper.GetString("password"),
		AuthToken: viper.GetString("auth-token"),
		UserID:    viper.GetString("user-id"),
		Username:  viper.GetString("username"),
		VideoURL:  viper.GetString("video-url"),
		Duration:  viper.GetFloat64("duration"),
		Heartbeat: viper.GetDuration("heartbeat"),
	}
}

func main() {
	cfg := loadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	client := watchclient.New(cfg.ServerURL, watchclient.WithLogger(logger))

	roomID, token, err := enter(ctx, client, cfg)
	if err != nil {
		return err
	}
	logger.Info("entered room", "room_id", roomID)

	session, err := client.Subscribe(ctx, roomID, token)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer session.Close()

	clock := clockwork.NewRealClock()
	player := playback.NewSimulatedPlayer(clock, cfg.Duration)
	state := session.State()
	ctrl := playback.NewController(player, session, cfg.UserID,
		playback.WithClock(clock),
		playback.WithLogger(logger),
		playback.WithHost(state.Room.HostID == cfg.UserID),
		playback.WithOptions(playback.Options{
			Threshold:         state.Room.Settings.SyncThreshold,
			AuthoritativeSeek: state.Room.Settings.AuthoritativeSeek,
		}),
	)

	watchclient.Follow(ctx, session, ctrl, watchclient.Handlers{
		OnSyncEvent: func(ctx context.Context, ev playback.SyncEvent) {
			logger.Info("sync event", "type", ev.Type, "current_time", ev.CurrentTime, "user_id", ev.UserID, "seq", ev.Seq)
		},
		OnRoomUpdated: func(ctx context.Context, r watchclient.Room) {
			logger.Info("room updated", "status", r.Status, "current_time", r.CurrentTime)
		},
		OnMessage: func(ctx context.Context, m watchclient.Message) {
			logger.Info("message", "username", m.Username, "text", m.Text)
		},
		OnParticipant: func(ctx context.Context, p watchclient.Participant) {
			logger.Info("participant", "username", p.Username, "presence", p.Presence)
		},
		OnError: func(ctx context.Context, err *watchclient.APIError) {
			logger.Warn("server error", "status", err.Status, "message", err.Message)
		},
		OnClose: func(err error) {
			logger.Info("session closed", "error", err)
		},
	})

	if ctrl.IsHost() && session.State().Room.Status == playback.StatusWaiting {
		if err := session.StartRoom(ctx); err != nil {
			return fmt.Errorf("failed to start room: %w", err)
		}
		if err := ctrl.Play(ctx); err != nil {
			logger.Warn("failed to play", "error", err)
		}
	}

	go ctrl.Heartbeat(ctx, cfg.Heartbeat)
	go keepAlive(ctx, session, cfg.Heartbeat, logger)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-session.Done():
		return nil
	}
}

func keepAlive(ctx context.Context, session *watchclient.Session, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-session.Done():
			return
		case <-ticker.C:
			if err := session.Alive(ctx); err != nil {
				logger.Debug("failed to send alive", "error", err)
			}
		}
	}
}

// enter joins the configured room or creates one hosted by the bot.
func enter(ctx context.Context, client *watchclient.Client, cfg config) (string, string, error) {
	if cfg.RoomID == "" {
		created, err := client.CreateRoom(ctx, &watchclient.CreateRoomRequest{
			Name:          cfg.Username + "'s room",
			UserID:        cfg.UserID,
			Username:      cfg.Username,
			VideoURL:      cfg.VideoURL,
			VideoDuration: cfg.Duration,
		})
		if err != nil {
			return "", "", err
		}
		return created.Room.ID, created.AuthToken, nil
	}

	joined, err := client.JoinRoom(ctx, cfg.RoomID, &watchclient.JoinRoomRequest{
		UserID:    cfg.UserID,
		Username:  cfg.Username,
		Password:  cfg.Password,
		AuthToken: cfg.AuthToken,
	})
	if err != nil {
		var joinErr *watchclient.JoinError
		if errors.As(err, &joinErr) {
			return "", "", fmt.Errorf("join refused: %s", joinErr.Reason)
		}
		return "", "", err
	}

	return cfg.RoomID, joined.AuthToken, nil
}
