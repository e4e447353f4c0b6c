// Package metrics exports account and request authentication activity to
// Prometheus.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	auth "github.com/goliatone/go-storeauth"
)

// Collector counts activity events. It implements auth.ActivitySink so it
// can be chained with other sinks through auth.MultiActivitySink.
type Collector struct {
	events     *prometheus.CounterVec
	rejections *prometheus.CounterVec
}

var _ auth.ActivitySink = (*Collector)(nil)

// NewCollector creates the collectors and registers them with reg
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storeauth_activity_events_total",
				Help: "Total number of account and authentication activity events",
			},
			[]string{"event"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storeauth_request_rejections_total",
				Help: "Total number of rejected authenticated requests",
			},
			[]string{"failure", "reason"},
		),
	}

	if reg != nil {
		for _, col := range []prometheus.Collector{c.events, c.rejections} {
			if err := reg.Register(col); err != nil {
				return nil, fmt.Errorf("register auth metrics: %w", err)
			}
		}
	}

	return c, nil
}

// Record implements auth.ActivitySink
func (c *Collector) Record(_ context.Context, event auth.ActivityEvent) error {
	c.events.WithLabelValues(string(event.EventType)).Inc()

	if event.EventType == auth.ActivityEventAuthRejected {
		c.rejections.WithLabelValues(
			metadataString(event.Metadata, "failure"),
			metadataString(event.Metadata, "reason"),
		).Inc()
	}
	return nil
}

// Events returns the event counter
func (c *Collector) Events() *prometheus.CounterVec {
	return c.events
}

// Rejections returns the rejection counter
func (c *Collector) Rejections() *prometheus.CounterVec {
	return c.rejections
}

func metadataString(md map[string]any, key string) string {
	if v, ok := md[key].(string); ok && v != "" {
		return v
	}
	return "unknown"
}
