package telemetry

import (
	"context"
	"time"

	"scalefx-mixer/internal/mixer"
	"scalefx-mixer/internal/sink"
)

// statsSink is the optional capability a Sink may offer the collector: the
// MockSink exposes it today; a real hardware sink can add a Stats method
// of its own once it has somewhere to source peak/RMS from.
type statsSink interface {
	Stats() sink.Stats
}

// Collector periodically copies a Mixer's running state into the package
// metrics. It owns no state the mixer depends on; stopping it never
// affects playback. Grounded on the teacher's RecordTick/UpdatePlayerCount
// calls made periodically from the game loop in internal/game/engine.go.
type Collector struct {
	mix      *mixer.Mixer
	snk      statsSink
	interval time.Duration
}

// NewCollector builds a Collector for mix, sampling at interval. snk may be
// nil; when it does not implement statsSink, the sink-side gauges are
// simply left unset.
func NewCollector(mix *mixer.Mixer, snk sink.Sink, interval time.Duration) *Collector {
	c := &Collector{mix: mix, interval: interval}
	if ss, ok := snk.(statsSink); ok {
		c.snk = ss
	}
	return c
}

// Run samples metrics every interval until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *Collector) sample() {
	recordTick(c.mix.LastTickDuration().Seconds())

	activeChannels.Set(float64(c.mix.ActiveChannelCount()))
	masterGain.Set(c.mix.MasterVolume())
	for ch := 0; ch < c.mix.NumChannels(); ch++ {
		setChannelGain(ch, c.mix.ChannelGain(ch))
	}

	stats := c.mix.RingStats()
	ringPending.Set(float64(stats.Pending))
	ringEnqueuedTotal.Set(float64(stats.Enqueued))
	ringDroppedTotal.Set(float64(stats.Dropped))

	tickOverrunTotal.Set(float64(c.mix.OverrunCount()))

	if c.snk == nil {
		return
	}
	st := c.snk.Stats()
	sinkPeak.WithLabelValues("left").Set(float64(st.PeakL))
	sinkPeak.WithLabelValues("right").Set(float64(st.PeakR))
	sinkRMS.WithLabelValues("left").Set(st.RMSL)
	sinkRMS.WithLabelValues("right").Set(st.RMSR)
	sinkClippingTotal.WithLabelValues("left").Set(float64(st.ClippingL))
	sinkClippingTotal.WithLabelValues("right").Set(float64(st.ClippingR))
}
