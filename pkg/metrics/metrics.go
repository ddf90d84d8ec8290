// Package metrics exports protocol counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotalks/aura.go/pkg/board"
	"github.com/robotalks/aura.go/pkg/command"
	"github.com/robotalks/aura.go/pkg/framework"
	"github.com/robotalks/aura.go/pkg/link"
	"github.com/robotalks/aura.go/pkg/packet"
)

const namespace = "aura"

// NewRegistry creates a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics holds the protocol counters.
type Metrics struct {
	Registry *prometheus.Registry

	FramesDecoded *prometheus.CounterVec // labels: link, id
	FramesDropped *prometheus.CounterVec // labels: link, reason
	FramesSent    *prometheus.CounterVec // labels: link, id
	Commands      *prometheus.CounterVec // labels: outcome
	Handshake     *prometheus.CounterVec // labels: id, result
}

// New registers the counters on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Registry: reg,
		FramesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_decoded_total",
			Help:      "Checksum-valid frames decoded per link and packet id.",
		}, []string{"link", "id"}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames discarded by the parser.",
		}, []string{"link", "reason"}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written per link and packet id.",
		}, []string{"link", "id"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Command sentences by outcome.",
		}, []string{"outcome"}),
		Handshake: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "board_handshake_steps_total",
			Help:      "Board configuration steps by packet id and result.",
		}, []string{"id", "result"}),
	}
	reg.MustRegister(m.FramesDecoded, m.FramesDropped, m.FramesSent, m.Commands, m.Handshake)
	return m
}

// Decoded counts frames handled on a link.
func (m *Metrics) Decoded(linkName string) packet.Handler {
	return packet.HandleFrameFunc(func(_ context.Context, f *packet.Frame) {
		m.FramesDecoded.WithLabelValues(linkName, f.ID.String()).Inc()
	})
}

// Sent counts frames written on a link.
func (m *Metrics) Sent(linkName string) packet.Handler {
	return packet.HandleFrameFunc(func(_ context.Context, f *packet.Frame) {
		m.FramesSent.WithLabelValues(linkName, f.ID.String()).Inc()
	})
}

// Dropped counts parser drops on a link.
func (m *Metrics) Dropped(linkName string) packet.DropNotifier {
	return packet.FrameDroppedFunc(func(_ packet.ID, err error) {
		m.FramesDropped.WithLabelValues(linkName, dropReason(err)).Inc()
	})
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, packet.ErrChecksum):
		return "checksum"
	case errors.Is(err, packet.ErrLength):
		return "length"
	default:
		return "other"
	}
}

// CommandObserved implements command.Observer.
func (m *Metrics) CommandObserved(_ string, outcome command.Outcome, _ error) {
	m.Commands.WithLabelValues(string(outcome)).Inc()
}

// StepCompleted implements board.StepObserver.
func (m *Metrics) StepCompleted(r board.StepResult) {
	result := "acked"
	if !r.Acked {
		result = "failed"
	}
	m.Handshake.WithLabelValues(r.Step.ID.String(), result).Inc()
}

// WatchLink exports the link's cumulative stats and open state.
func (m *Metrics) WatchLink(l *link.Link) {
	labels := prometheus.Labels{"link": l.Name}
	counter := func(name, help string, get func(link.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "link",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(get(l.Stats())) })
	}
	m.Registry.MustRegister(
		counter("bytes_read_total", "Bytes read from the link.", func(s link.Stats) uint64 { return s.BytesRead }),
		counter("bytes_written_total", "Bytes accepted by the transport.", func(s link.Stats) uint64 { return s.BytesWritten }),
		counter("dropped_total", "Frames dropped by a full pending buffer or a failed write.", func(s link.Stats) uint64 { return s.Dropped }),
		counter("opens_total", "Successful opens.", func(s link.Stats) uint64 { return s.Opens }),
		counter("open_failures_total", "Failed open attempts.", func(s link.Stats) uint64 { return s.OpenFailures }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "link",
			Name:        "open",
			Help:        "1 when the link is open.",
			ConstLabels: labels,
		}, func() float64 {
			if l.IsOpen() {
				return 1
			}
			return 0
		}),
	)
}

// WatchLoop exports tick counters of the control loop.
func (m *Metrics) WatchLoop(l *framework.Loop) {
	m.Registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "ticks_total",
			Help:      "Completed control loop ticks.",
		}, func() float64 { return float64(l.Ticks()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "overruns_total",
			Help:      "Ticks that took longer than the loop interval.",
		}, func() float64 { return float64(l.Overruns()) }),
	)
}
