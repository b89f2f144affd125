// Package influxdb provides the optional InfluxDB sink for the discovery adapter.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes, and health monitoring.
//
// # Purpose
//
// Decoded device readings are recorded as time series:
//   - device_metrics: numeric sensor values and light levels, tagged by
//     identity, category and metric name
//   - link_health: signal and battery levels from device telemetry
//
// Every point is tagged source=mqtt_discovery.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "graylogic",
//	    Bucket:  "discovery",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDeviceMetric("dev1/temp_1", "numeric_sensor:temperature", "temperature", 21.5)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Writes are non-blocking. Failed batches are counted (WriteErrors) and
// reported through the SetOnError callback. Connection and health check
// errors are returned directly.
package influxdb
