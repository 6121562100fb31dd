package room

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id"`
	UserID        string `json:"user_id"`
	jwt.RegisteredClaims
}

func (s service) generateJWT(roomID, participantID, userID string) (string, error) {
	now := s.clock.Now()
	claims := Claims{
		RoomID:        roomID,
		ParticipantID: participantID,
		UserID:        userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.tokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.tokenTTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(s.secret)
}

func (s service) ParseToken(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid || claims.RoomID == "" || claims.ParticipantID == "" {
		return nil, ErrInvalidToken
	}

	return &claims, nil
}

// parseRejoinToken checks the signature of a previously issued token. Expiry
// is not enforced: the token only proves which row the caller was given.
func (s service) parseRejoinToken(tokenString string) (*Claims, error) {
	var claims Claims
	if _, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.RoomID == "" || claims.ParticipantID == "" {
		return nil, ErrInvalidToken
	}

	return &claims, nil
}
