package mixer

import (
	"encoding/binary"

	"scalefx-mixer/internal/audioerr"
	"scalefx-mixer/internal/wav"
)

// Channel is one mix slot: at most one playing WavSource plus a bounded
// FIFO of follow-up QueuedItems. Channel state is touched only from the
// mixing context (spec §5) — it carries no mutex of its own.
type Channel struct {
	store wav.Storage

	active   bool
	source   *wav.Source
	filename string

	gain    float64
	routing Routing

	loopRemaining int // LoopInfinite, 0, or N>0
	loopInitial   int

	fading   bool
	fadeMult float64
	fadeStep float64

	queue         []QueuedItem
	queueCapacity int
}

// NewChannel creates an idle channel backed by store, with room for
// queueCapacity deferred items.
func NewChannel(store wav.Storage, queueCapacity int) *Channel {
	return &Channel{
		store:         store,
		gain:          1.0,
		routing:       RoutingStereo,
		fadeMult:      1.0,
		queueCapacity: queueCapacity,
	}
}

// fadeSteps is the number of output SAMPLES a stop-fade ramps over:
// ceil(fadeDurationMs * sampleRate / 1000). The fade multiplier is
// decremented once per sample (not once per block) so the ramp has no
// audible stair-steps — see DESIGN.md's fade-granularity note.
func fadeSteps(sampleRate, fadeDurationMs int) int {
	steps := (fadeDurationMs*sampleRate + 999) / 1000
	if steps < 1 {
		steps = 1
	}
	return steps
}

// play opens filename and makes it the channel's active source, releasing
// any source the channel previously held. LoopCount is stored as given:
// Mixer.Queue rejects negative counts, Mixer.Play does not, and a negative
// count other than LoopInfinite ends the channel at source end like 0.
func (c *Channel) play(filename string, opts PlayOptions) error {
	src, err := wav.OpenWithStorage(c.store, filename)
	if err != nil {
		return err
	}
	if opts.StartOffsetMs > 0 {
		offsetFrames := int64(opts.StartOffsetMs) * int64(src.SampleRate()) / 1000
		if err := src.SeekFrames(offsetFrames); err != nil {
			src.Close()
			return err
		}
	}

	c.closeSource()
	c.source = src
	c.filename = filename
	c.gain = clampUnitGain(opts.Gain)
	c.routing = opts.Routing
	c.loopRemaining = opts.LoopCount
	c.loopInitial = opts.LoopCount
	c.fading = false
	c.fadeMult = 1
	c.fadeStep = 0
	c.active = true
	return nil
}

func (c *Channel) closeSource() {
	if c.source != nil {
		c.source.Close()
		c.source = nil
	}
}

func (c *Channel) stopImmediate() {
	c.active = false
	c.fading = false
	c.closeSource()
}

func (c *Channel) stopFade(sampleRate, fadeDurationMs int) {
	if !c.active || c.fading {
		return
	}
	c.fading = true
	c.fadeMult = 1
	c.fadeStep = 1.0 / float64(fadeSteps(sampleRate, fadeDurationMs))
}

// stopLoopEnd clears looping so the channel terminates once the current
// iteration's source is exhausted.
func (c *Channel) stopLoopEnd() {
	c.loopRemaining = 0
}

func (c *Channel) setGain(g float64) {
	c.gain = clampUnitGain(g)
}

func (c *Channel) setRouting(r Routing) {
	c.routing = r
}

func (c *Channel) hasQueued() bool {
	return len(c.queue) > 0
}

func (c *Channel) enqueueItem(item QueuedItem) bool {
	if len(c.queue) >= c.queueCapacity {
		return false
	}
	c.queue = append(c.queue, item)
	return true
}

func (c *Channel) clearQueue() {
	c.queue = c.queue[:0]
}

func (c *Channel) popQueue() (QueuedItem, bool) {
	if len(c.queue) == 0 {
		return QueuedItem{}, false
	}
	item := c.queue[0]
	c.queue[0] = QueuedItem{}
	c.queue = c.queue[1:]
	return item, true
}

func (c *Channel) tryDequeueAndPlay() {
	item, ok := c.popQueue()
	if !ok {
		return
	}
	// A malformed queued filename leaves the channel idle, same as a
	// failed Play: consumed silently, per spec §4.3 failure handling.
	_ = c.play(item.Filename, item.Options)
}

// endSource runs the §4.2 loop/queue decision algorithm once the current
// source is exhausted (or a fade has completed).
func (c *Channel) endSource() {
	if c.fading {
		c.fading = false
		c.active = false
		c.closeSource()
		c.tryDequeueAndPlay()
		return
	}

	switch {
	case c.loopRemaining > 0:
		c.loopRemaining--
		c.rewind()
	case c.loopRemaining == LoopInfinite && !c.hasQueued():
		c.rewind()
	default:
		// loopRemaining == 0, or LoopInfinite with a (necessarily
		// FinishLoop) item queued: terminate and start the next item.
		c.active = false
		c.closeSource()
		c.tryDequeueAndPlay()
	}
}

func (c *Channel) rewind() {
	if c.source == nil {
		return
	}
	_ = c.source.SeekFrames(0)
}

// mixBlock fills up to n samples of outL/outR starting at index 0 with
// this channel's contribution, scaled by gain*masterGain*fadeMult and
// routed per c.routing. It rewinds or advances to a queued item inline
// when the source ends mid-block, so loop/queue boundaries land on the
// exact output sample the spec's testable scenarios expect (§8 scenarios
// 4 and 5), rather than waiting for the next tick.
func (c *Channel) mixBlock(outL, outR []int32, n int, masterGain float64, readBuf []byte) {
	produced := 0
	for produced < n && c.active && c.source != nil {
		bpf := c.source.BytesPerFrame()
		want := n - produced
		if want*bpf > len(readBuf) {
			want = len(readBuf) / bpf
		}
		if want <= 0 {
			break
		}

		framesRead, err := c.source.ReadFrames(readBuf, want)
		if err != nil || framesRead == 0 {
			c.endSource()
			continue
		}

		channels := c.source.Channels()
		bits := c.source.BitsPerSample()
		stoppedMidway := false

		for i := 0; i < framesRead; i++ {
			left, right := decodeFrame(readBuf, i, bpf, channels, bits)
			gain := c.gain * masterGain
			if c.fading {
				gain *= c.fadeMult
			}
			idx := produced + i
			scaledL := int32(float64(left) * gain)
			scaledR := int32(float64(right) * gain)
			switch c.routing {
			case RoutingStereo:
				outL[idx] += scaledL
				outR[idx] += scaledR
			case RoutingLeftOnly:
				outL[idx] += scaledL
			case RoutingRightOnly:
				outR[idx] += scaledR
			}

			if c.fading {
				c.fadeMult -= c.fadeStep
				if c.fadeMult <= 0 {
					c.fadeMult = 0
					produced += i + 1
					stoppedMidway = true
					break
				}
			}
		}

		if stoppedMidway {
			c.endSource()
			continue
		}

		produced += framesRead
		if c.source.FramesRemaining() == 0 {
			c.endSource()
		}
	}
}

// decodeFrame extracts the (left, right) signed 16-bit, center-zero
// samples at frame index i of a buffer holding channels-interleaved
// frames of the given bit depth.
func decodeFrame(buf []byte, i, bpf, channels, bits int) (int16, int16) {
	base := i * bpf
	if bits == 16 {
		if channels == 2 {
			l := int16(binary.LittleEndian.Uint16(buf[base:]))
			r := int16(binary.LittleEndian.Uint16(buf[base+2:]))
			return l, r
		}
		v := int16(binary.LittleEndian.Uint16(buf[base:]))
		return v, v
	}
	// bits == 8: unsigned, centered at 128, widened into the 16-bit range.
	if channels == 2 {
		l := int16(int(buf[base])-128) << 8
		r := int16(int(buf[base+1])-128) << 8
		return l, r
	}
	v := int16(int(buf[base])-128) << 8
	return v, v
}

var errChannelOutOfRange = audioerr.New(audioerr.ChannelOutOfRange, "mixer", "channel index out of range")
