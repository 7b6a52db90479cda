// Package telemetry exposes the mixer's running state as Prometheus
// metrics and a loopback-only pprof/health mux, grounded on the teacher's
// internal/api/observability.go. The mixer core itself never imports this
// package; a demo binary wires the two together.
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics with bounded cardinality: the only labels are channel index,
// bounded by the engine's configured channel count (spec §1, typically
// single digits), and sink side ("left"/"right"), never an unbounded value
// like a filename.
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mixer_tick_duration_seconds",
		Help:    "Time spent producing one mix block",
		Buckets: []float64{0.0002, 0.0005, 0.001, 0.002, 0.005, 0.01},
	})

	// *Total gauges mirror a monotonic counter the mixer or sink already
	// maintains internally; the collector copies the absolute value on
	// every sample rather than tracking its own deltas, so these are
	// Gauges (Set), not Prometheus Counters (Add-only).
	tickOverrunTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mixer_tick_overrun_total",
		Help: "Ticks whose mix+sink-write time exceeded the block period",
	})

	activeChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mixer_active_channels",
		Help: "Number of channels currently playing",
	})

	channelGain = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mixer_channel_gain",
		Help: "Current per-channel gain, 0.0-1.0",
	}, []string{"channel"})

	masterGain = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mixer_master_gain",
		Help: "Current master gain, 0.0-1.0",
	})

	ringPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mixer_command_ring_pending",
		Help: "Commands currently queued in the cross-context command ring",
	})

	ringEnqueuedTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mixer_command_ring_enqueued_total",
		Help: "Commands successfully pushed onto the command ring",
	})

	ringDroppedTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mixer_command_ring_dropped_total",
		Help: "Commands dropped because the command ring was full",
	})

	sinkPeak = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mixer_sink_peak_amplitude",
		Help: "Peak absolute sample amplitude observed by the sink",
	}, []string{"side"})

	sinkRMS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mixer_sink_rms",
		Help: "Running RMS amplitude observed by the sink",
	}, []string{"side"})

	sinkClippingTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mixer_sink_clipping_total",
		Help: "Samples that hit the int16 rail after soft-clipping",
	}, []string{"side"})
)

// recordTick observes one tick's wall-clock cost.
func recordTick(seconds float64) {
	tickDuration.Observe(seconds)
}

// setChannelGain sets the gain gauge for one channel index.
func setChannelGain(ch int, gain float64) {
	channelGain.WithLabelValues(channelLabel(ch)).Set(gain)
}

func channelLabel(ch int) string {
	// Bounded: ch ranges over the engine's configured channel count, never
	// user input.
	return strconv.Itoa(ch)
}
