// Package mixer owns the Channel array, the cross-context command ring,
// and the mix/tick loop that turns WAV Sources into a stereo block stream
// pushed to a Sink, with a Codec Controller configured alongside it.
package mixer

// Routing selects which mix accumulator(s) a channel contributes to.
type Routing int

const (
	RoutingStereo Routing = iota
	RoutingLeftOnly
	RoutingRightOnly
)

func (r Routing) String() string {
	switch r {
	case RoutingStereo:
		return "stereo"
	case RoutingLeftOnly:
		return "left_only"
	case RoutingRightOnly:
		return "right_only"
	default:
		return "unknown"
	}
}

// StopMode selects how a stop request terminates a channel.
type StopMode int

const (
	// StopImmediate terminates the channel unconditionally, this tick.
	StopImmediate StopMode = iota
	// StopFade schedules a FadeDurationMs linear fade-out, then terminates.
	StopFade
	// StopLoopEnd clears looping so the channel terminates at the current
	// loop iteration's end, without fading.
	StopLoopEnd
)

// QueueLoopBehavior governs how a queued item replaces an infinitely
// looping channel.
type QueueLoopBehavior int

const (
	// QueueStopImmediate preempts an infinitely-looping channel the
	// moment the Queue command is drained.
	QueueStopImmediate QueueLoopBehavior = iota
	// QueueFinishLoop lets the current loop iteration finish, then starts
	// the queued item.
	QueueFinishLoop
)

// LoopInfinite marks PlayOptions.LoopCount / Channel.loopRemaining as
// looping forever.
const LoopInfinite = -1

// PlayOptions carries the per-play parameters accepted by Play/Queue.
type PlayOptions struct {
	Gain          float64
	Routing       Routing
	LoopCount     int // LoopInfinite, 0 (no loop), or N>0 finite loops remaining
	StartOffsetMs int
}

// QueuedItem is a deferred play request sitting in a channel's FIFO.
type QueuedItem struct {
	Filename     string
	Options      PlayOptions
	LoopBehavior QueueLoopBehavior
}

// ChannelStatus is the scalar snapshot the mixing context publishes once
// per tick for the control context to read without touching channel
// internals (spec §5: "race on read is benign — values are advisory").
type ChannelStatus struct {
	IsPlaying     bool
	RemainingMs   int64 // -1 while looping infinitely
	Filename      string
	Gain          float64
	Routing       Routing
	IsLooping     bool
	LoopRemaining int
	LoopInitial   int
	SampleRate    int
	NumChannels   int
	BitsPerSample int
	TotalFrames   int64
}

func clampUnitGain(g float64) float64 {
	if g < 0 {
		return 0
	}
	if g > 1 {
		return 1
	}
	return g
}
