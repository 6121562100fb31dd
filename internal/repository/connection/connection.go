package connection

import "errors"

var (
	ErrNotFound      = errors.New("connection not found")
)

// Conn is a live participant connection the service may close.
type Conn interface {
	Close(code int, reason string) error
}
