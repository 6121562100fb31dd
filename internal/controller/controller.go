package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/skillforge/watchroom/internal/service/room"
	"github.com/skillforge/watchroom/pkg/playback"
	"github.com/skillforge/watchroom/pkg/validator"
	"github.com/skillforge/watchroom/pkg/wsrouter"
	"golang.org/x/time/rate"
)

type iRoomService interface {
	// room
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LoadRoom(ctx context.Context, roomID string) (room.RoomState, error)
	StartRoom(context.Context, *room.SetRoomStatusParams) (room.Room, error)
	EndRoom(context.Context, *room.SetRoomStatusParams) (room.Room, error)
	ChangeVideo(context.Context, *room.ChangeVideoParams) (room.Room, error)
	// playback
	SendSyncEvent(context.Context, *room.SendSyncEventParams) (playback.SyncEvent, error)
	UpdatePlaybackState(context.Context, *room.UpdatePlaybackStateParams) (room.Room, error)
	// message
	SendMessage(context.Context, *room.SendMessageParams) (room.Message, error)
	// participant
	ConnectParticipant(context.Context, *room.ConnectParticipantParams) (room.Participant, error)
	DisconnectParticipant(context.Context, *room.DisconnectParticipantParams) error
	UpdatePresence(context.Context, *room.UpdatePresenceParams) (room.Participant, error)
	PromoteParticipant(context.Context, *room.ModerateParticipantParams) (room.Participant, error)
	RemoveParticipant(context.Context, *room.ModerateParticipantParams) error
	// live
	Subscribe(ctx context.Context, roomID string, handlers room.Handlers) (func(), error)
	ParseToken(token string) (*room.Claims, error)
}

type Config struct {
	// WSRate is the sustained inbound message rate per connection.
	WSRate  float64
	WSBurst int
	// HTTPRate is the number of REST requests allowed per IP per minute.
	HTTPRate       int
	RequestTimeout time.Duration
}

type controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsRouter    *wsrouter.WSRouter
	logger      *slog.Logger

	wsRate         rate.Limit
	wsBurst        int
	httpRate       int
	requestTimeout time.Duration
}

func NewController(roomService iRoomService, logger *slog.Logger, cfg *Config) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService:    roomService,
		validate:       validator.NewValidator(),
		logger:         logger,
		wsRate:         rate.Limit(cfg.WSRate),
		wsBurst:        cfg.WSBurst,
		httpRate:       cfg.HTTPRate,
		requestTimeout: cfg.RequestTimeout,
	}
	c.wsRouter = c.getWSRouter()

	return c
}
