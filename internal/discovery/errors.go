package discovery

import "errors"

// Domain errors for the discovery package.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrEmptyIdentity is returned when a discovery topic yields no object identifier.
	ErrEmptyIdentity = errors.New("discovery: empty device identity")

	// ErrNotConfigMessage is returned when a message under the discovery prefix
	// is not a usable config announcement.
	ErrNotConfigMessage = errors.New("discovery: not a config message")

	// ErrInvalidTemplate is returned when a value template does not have a
	// supported expression shape.
	ErrInvalidTemplate = errors.New("discovery: unsupported value template")

	// ErrNilTransport is returned when an orchestrator is built without a transport.
	ErrNilTransport = errors.New("discovery: transport is required")

	// ErrNilRegistry is returned when an orchestrator is built without a registry.
	ErrNilRegistry = errors.New("discovery: registry is required")
)
