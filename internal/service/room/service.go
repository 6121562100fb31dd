package room

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/skillforge/watchroom/internal/broker"
	"github.com/skillforge/watchroom/internal/repository/connection"
	"github.com/skillforge/watchroom/internal/repository/room"
	"github.com/skillforge/watchroom/pkg/ytvideodata"
)

var (
	ErrRoomNotFound         = room.ErrRoomNotFound
	ErrParticipantNotFound  = room.ErrParticipantNotFound
	ErrPermissionDenied     = errors.New("permission denied")
	ErrRoomEnded            = room.ErrRoomEnded
	ErrAlreadyJoined        = room.ErrParticipantExists
	ErrParticipantRemoved   = room.ErrParticipantRemoved
	ErrChatDisabled         = errors.New("chat is disabled in this room")
	ErrControlsLocked       = errors.New("playback controls are locked until the host starts the room")
	ErrInvalidTransition    = errors.New("invalid room status transition")
	ErrInvalidToken         = errors.New("invalid token")
	ErrInvalidCapacity      = errors.New("invalid participant capacity")
	ErrInvalidSyncThreshold = errors.New("sync threshold must be positive")
	ErrInvalidMessage       = errors.New("message must be between 1 and 500 characters")
	ErrInvalidPresence      = errors.New("invalid presence")
)

// Close codes sent to a participant connection closed by the service.
const (
	CloseCodeRemoved  = 4001
	CloseCodeReplaced = 4002
)

type iRoomRepo interface {
	// room
	SetRoom(context.Context, *room.SetRoomParams) error
	GetRoom(ctx context.Context, roomID string) (room.Room, error)
	UpdateRoomStatus(context.Context, *room.UpdateRoomStatusParams) error
	UpdatePlaybackState(context.Context, *room.UpdatePlaybackStateParams) error
	UpdateRoomVideo(context.Context, *room.UpdateRoomVideoParams) error
	NextSeq(ctx context.Context, roomID string) (int64, error)
	RemoveRoom(ctx context.Context, roomID string) error
	// participant
	JoinParticipant(context.Context, *room.JoinParticipantParams) (room.JoinParticipantResponse, error)
	GetParticipant(ctx context.Context, participantID string) (room.Participant, error)
	GetParticipants(ctx context.Context, roomID string) ([]room.Participant, error)
	UpdateParticipantPresence(context.Context, *room.UpdateParticipantPresenceParams) (bool, error)
	UpdateParticipantIsModerator(context.Context, *room.UpdateParticipantIsModeratorParams) error
	RemoveParticipant(context.Context, *room.RemoveParticipantParams) error
	// message
	AddMessage(context.Context, *room.AddMessageParams) error
	GetRecentMessages(ctx context.Context, roomID string, limit int) ([]room.Message, error)
}

type iConnRepo interface {
	Add(participantID string, conn connection.Conn) connection.Conn
	Remove(participantID string, conn connection.Conn) error
	Get(participantID string) (connection.Conn, error)
}

type iVideoResolver interface {
	Get(ctx context.Context, videoURL string) (*ytvideodata.VideoData, error)
}

type Config struct {
	Secret               string
	DefaultCapacity      int
	MaxCapacity          int
	DefaultSyncThreshold float64
	MessageHistory       int
	TokenTTL             time.Duration
	// RequestTimeout bounds best-effort lookups.
	RequestTimeout time.Duration
}

type service struct {
	roomRepo iRoomRepo
	connRepo iConnRepo
	broker   broker.Broker
	videos   iVideoResolver
	clock    clockwork.Clock
	logger   *slog.Logger
	secret   []byte

	defaultCapacity      int
	maxCapacity          int
	defaultSyncThreshold float64
	messageHistory       int
	tokenTTL             time.Duration
	requestTimeout       time.Duration
}

// NewService builds the room orchestrator. videos may be nil, in which case
// video titles are never looked up.
func NewService(roomRepo iRoomRepo, connRepo iConnRepo, b broker.Broker, videos iVideoResolver, clock clockwork.Clock, logger *slog.Logger, cfg *Config) *service {
	return &service{
		roomRepo:             roomRepo,
		connRepo:             connRepo,
		broker:               b,
		videos:               videos,
		clock:                clock,
		logger:               logger,
		secret:               []byte(cfg.Secret),
		defaultCapacity:      cfg.DefaultCapacity,
		maxCapacity:          cfg.MaxCapacity,
		defaultSyncThreshold: cfg.DefaultSyncThreshold,
		messageHistory:       cfg.MessageHistory,
		tokenTTL:             cfg.TokenTTL,
		requestTimeout:       cfg.RequestTimeout,
	}
}

func (s service) now() int64 {
	return s.clock.Now().UnixMilli()
}
