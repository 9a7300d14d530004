// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector is the observability seam of the session. Implementations
// must be safe for use from the session's network loop.
type MetricsCollector interface {
	// RectangleDecoded records one decoded rectangle for the given encoding.
	RectangleDecoded(encoding int32, bytes int)

	// UpdateApplied records one fully applied framebuffer update.
	UpdateApplied(rectangles int)

	// InputSent records one outgoing input event of the given kind
	// ("pointer", "key" or "clipboard").
	InputSent(kind string)

	// PointerCoalesced records one pointer move dropped by the throttler.
	PointerCoalesced()
}

// NoOpMetrics is a MetricsCollector implementation that discards all metrics.
// It is the default when no collector is configured.
type NoOpMetrics struct{}

// RectangleDecoded discards the observation.
func (*NoOpMetrics) RectangleDecoded(encoding int32, bytes int) {}

// UpdateApplied discards the observation.
func (*NoOpMetrics) UpdateApplied(rectangles int) {}

// InputSent discards the observation.
func (*NoOpMetrics) InputSent(kind string) {}

// PointerCoalesced discards the observation.
func (*NoOpMetrics) PointerCoalesced() {}

// PrometheusMetrics implements MetricsCollector on top of Prometheus
// instruments. Register it with a prometheus.Registerer before use.
type PrometheusMetrics struct {
	rectangles       *prometheus.CounterVec
	rectangleBytes   *prometheus.CounterVec
	updates          prometheus.Counter
	updateRectangles prometheus.Histogram
	inputEvents      *prometheus.CounterVec
	coalesced        prometheus.Counter
}

// NewPrometheusMetrics creates the session instruments and registers them with
// reg. Pass prometheus.DefaultRegisterer for the process-wide registry.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		rectangles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rfb_rectangles_decoded_total",
			Help: "Rectangles decoded, by wire encoding id.",
		}, []string{"encoding"}),
		rectangleBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rfb_rectangle_bytes_total",
			Help: "Encoded payload bytes consumed, by wire encoding id.",
		}, []string{"encoding"}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rfb_updates_applied_total",
			Help: "Framebuffer updates fully applied.",
		}),
		updateRectangles: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rfb_update_rectangles",
			Help:    "Rectangles per framebuffer update.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		inputEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rfb_input_events_total",
			Help: "Input events written to the server, by kind.",
		}, []string{"kind"}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rfb_pointer_moves_coalesced_total",
			Help: "Pointer moves dropped by throttling.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.rectangles, m.rectangleBytes, m.updates,
		m.updateRectangles, m.inputEvents, m.coalesced,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RectangleDecoded records one decoded rectangle for the given encoding.
func (m *PrometheusMetrics) RectangleDecoded(encoding int32, bytes int) {
	label := encodingLabel(encoding)
	m.rectangles.WithLabelValues(label).Inc()
	m.rectangleBytes.WithLabelValues(label).Add(float64(bytes))
}

// UpdateApplied records one fully applied framebuffer update.
func (m *PrometheusMetrics) UpdateApplied(rectangles int) {
	m.updates.Inc()
	m.updateRectangles.Observe(float64(rectangles))
}

// InputSent records one outgoing input event.
func (m *PrometheusMetrics) InputSent(kind string) {
	m.inputEvents.WithLabelValues(kind).Inc()
}

// PointerCoalesced records one pointer move dropped by the throttler.
func (m *PrometheusMetrics) PointerCoalesced() {
	m.coalesced.Inc()
}

// encodingLabel maps a wire encoding id to a stable metric label.
func encodingLabel(encoding int32) string {
	switch encoding {
	case EncRaw:
		return "raw"
	case EncCopyRect:
		return "copyrect"
	case EncRRE:
		return "rre"
	case EncHextile:
		return "hextile"
	case EncZRLE:
		return "zrle"
	case EncCursorPseudo:
		return "cursor"
	case EncDesktopSizePseudo:
		return "desktopsize"
	default:
		return "other"
	}
}
