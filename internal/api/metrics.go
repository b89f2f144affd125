package api

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricPrefix = "graylogic_discovery_"

// newMetricsRegistry builds the Prometheus registry served on /metrics.
// Counters read the orchestrator's atomic stats at scrape time.
func newMetricsRegistry(s *Server) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if s.stats != nil {
		counters := []struct {
			name  string
			help  string
			value *atomic.Uint64
		}{
			{"messages_received_total", "Inbound MQTT messages", &s.stats.MessagesReceived},
			{"config_messages_total", "Discovery config messages processed", &s.stats.ConfigMessages},
			{"ignored_messages_total", "Messages dropped by the ignore list", &s.stats.IgnoredMessages},
			{"topic_lookups_total", "State topic lookups against the index", &s.stats.TopicLookups},
			{"state_updates_total", "Decoded state updates written to the registry", &s.stats.StateUpdates},
			{"suppressed_updates_total", "Periodic telemetry updates skipped as unchanged", &s.stats.SuppressedUpdates},
			{"devices_created_total", "Host device records created", &s.stats.DevicesCreated},
			{"devices_updated_total", "Host device records reconfigured", &s.stats.DevicesUpdated},
			{"registry_errors_total", "Failed registry writes", &s.stats.RegistryErrors},
			{"status_polls_total", "Status poll requests published", &s.stats.StatusPolls},
			{"reconnects_total", "Transport reconnect attempts", &s.stats.Reconnects},
		}
		for _, c := range counters {
			v := c.value
			reg.MustRegister(prometheus.NewCounterFunc(
				prometheus.CounterOpts{Name: metricPrefix + c.name, Help: c.help},
				func() float64 { return float64(v.Load()) },
			))
		}
	}

	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: metricPrefix + "devices", Help: "Devices in the host registry"},
		func() float64 { return float64(s.registry.GetStats().TotalDevices) },
	))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: metricPrefix + "devices_timed_out", Help: "Devices reporting unavailable"},
		func() float64 { return float64(s.registry.GetStats().TimedOut) },
	))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: metricPrefix + "subscribed_topics", Help: "Topics in the subscription set"},
		func() float64 { return float64(len(s.topics.TopicsOfInterest())) },
	))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: metricPrefix + "websocket_clients", Help: "Connected WebSocket clients"},
		func() float64 { return float64(s.hub.ClientCount()) },
	))

	if s.connState != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: metricPrefix + "mqtt_connection_state", Help: "0 disconnected, 1 connecting, 2 connected, 3 subscribed"},
			func() float64 { return float64(s.connState()) },
		))
	}

	if s.sink != nil {
		reg.MustRegister(
			prometheus.NewCounterFunc(
				prometheus.CounterOpts{Name: metricPrefix + "influxdb_points_total", Help: "Points queued for InfluxDB"},
				func() float64 { return float64(s.sink.PointsQueued()) },
			),
			prometheus.NewCounterFunc(
				prometheus.CounterOpts{Name: metricPrefix + "influxdb_write_errors_total", Help: "InfluxDB batches that failed to write"},
				func() float64 { return float64(s.sink.WriteErrors()) },
			),
		)
	}

	return reg
}
