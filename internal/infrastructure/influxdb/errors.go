package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when the sink is off in config.
	ErrDisabled = errors.New("influxdb: metrics sink disabled")

	// ErrConnectionFailed wraps the cause of a failed initial ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrUnhealthy means the server answered the ping but reported itself
	// unhealthy.
	ErrUnhealthy = errors.New("influxdb: server not healthy")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")
)
