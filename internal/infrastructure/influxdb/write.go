package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the discovery adapter.
const (
	measurementDeviceMetrics = "device_metrics"
	measurementLinkHealth    = "link_health"
)

// WriteDeviceMetric writes a single decoded device reading to InfluxDB.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - identity: Discovery identity of the device (e.g., "dev1/temp_1")
//   - category: Host category name (e.g., "numeric_sensor:temperature")
//   - metric: The reading name (e.g., "temperature", "humidity", "level")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteDeviceMetric("dev1/temp_1", "numeric_sensor:temperature", "temperature", 21.5)
func (c *Client) WriteDeviceMetric(identity, category, metric string, value float64) {
	c.write(deviceMetricPoint(identity, category, metric, value, time.Now()))
}

// WriteLinkHealth records a device's signal and battery levels as reported
// by its telemetry.
//
// Parameters:
//   - identity: Discovery identity of the device
//   - signal: Signal level 0..10, or nil when not reported
//   - battery: Battery level 0..100 or 255, or nil when not reported
func (c *Client) WriteLinkHealth(identity string, signal, battery *int) {
	c.write(linkHealthPoint(identity, signal, battery, time.Now()))
}

func deviceMetricPoint(identity, category, metric string, value float64, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementDeviceMetrics,
		map[string]string{
			"identity": identity,
			"category": category,
			"metric":   metric,
		},
		map[string]interface{}{
			"value": value,
		},
		ts,
	)
}

// linkHealthPoint returns nil when neither level is set.
func linkHealthPoint(identity string, signal, battery *int, ts time.Time) *write.Point {
	fields := make(map[string]interface{}, 2)
	if signal != nil {
		fields["signal"] = *signal
	}
	if battery != nil {
		fields["battery"] = *battery
	}
	if len(fields) == 0 {
		return nil
	}

	return write.NewPoint(
		measurementLinkHealth,
		map[string]string{"identity": identity},
		fields,
		ts,
	)
}
