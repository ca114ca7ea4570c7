package services

import "errors"

// Error taxonomy. Only ErrEmptyMessage and reasoning-API failures reach
// the HTTP boundary as error responses; tool and persistence failures are
// absorbed into degraded-but-successful turns.
var (
	// ErrEmptyMessage rejects an empty inbound chat message.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrGatewayUnavailable means the tool server could not be reached for
	// the schema listing; orchestrator construction fails and the session
	// is not registered.
	ErrGatewayUnavailable = errors.New("tool gateway unavailable")
)
