package mixer

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"scalefx-mixer/internal/audioerr"
	"scalefx-mixer/internal/codec"
	"scalefx-mixer/internal/config"
	"scalefx-mixer/internal/sink"
	"scalefx-mixer/internal/wav"
)

// Mixer owns the Channel array, the mix buffers, the command ring, the
// Sink, and the Codec Controller. It produces one stereo block per tick
// (spec §4.3).
type Mixer struct {
	cfg     config.MixerConfig
	storage wav.Storage
	snk     sink.Sink
	cdc     codec.Controller

	channels []*Channel
	ring     *commandRing

	mixL, mixR []int32
	readBuf    []byte

	statusMu sync.RWMutex
	status   []ChannelStatus

	masterMu   sync.RWMutex
	masterGain float64

	initialized bool
	blockPeriod time.Duration

	drainScratch []Command

	lastOverrunLogAt time.Time
	overrunCount     uint64
	lastTickNanos    int64
}

// New constructs a Mixer from cfg without touching the sink or codec yet;
// call Begin to bring everything up.
func New(cfg config.MixerConfig, storage wav.Storage, snk sink.Sink, cdc codec.Controller) *Mixer {
	channels := make([]*Channel, cfg.NumChannels)
	for i := range channels {
		channels[i] = NewChannel(storage, cfg.QueueCapacity)
	}
	return &Mixer{
		cfg:         cfg,
		storage:     storage,
		snk:         snk,
		cdc:         cdc,
		channels:    channels,
		ring:        newCommandRing(cfg.RingCapacity),
		mixL:        make([]int32, cfg.BlockSize),
		mixR:        make([]int32, cfg.BlockSize),
		readBuf:     make([]byte, cfg.BlockSize*4), // up to stereo 16-bit per frame
		status:      make([]ChannelStatus, cfg.NumChannels),
		masterGain:  cfg.MasterVolume,
		blockPeriod: time.Duration(cfg.BlockSize) * time.Second / time.Duration(cfg.SampleRate),
	}
}

// Begin brings the codec and sink up, in that order (spec §9: "the codec
// must be configured before the sink is enabled... otherwise the first
// frames may be emitted while the DAC is in mute or clock-not-locked
// state").
func (m *Mixer) Begin() error {
	if m.cdc != nil {
		if err := m.cdc.Begin(m.cfg.SampleRate); err != nil {
			return audioerr.Wrap(audioerr.CodecControlFault, "mixer.Begin", err)
		}
	}
	if err := m.snk.Begin(m.cfg.SampleRate); err != nil {
		return audioerr.Wrap(audioerr.SinkFault, "mixer.Begin", err)
	}
	m.initialized = true
	return nil
}

// Shutdown stops every channel, closes its file handle, and stops the
// sink. Partial failures unwind in reverse order of acquisition.
func (m *Mixer) Shutdown() error {
	for _, c := range m.channels {
		c.stopImmediate()
		c.clearQueue()
	}
	if err := m.snk.End(); err != nil {
		return audioerr.Wrap(audioerr.SinkFault, "mixer.Shutdown", err)
	}
	m.initialized = false
	return nil
}

// Run drives tick() on a ticker at the block period until ctx is
// cancelled, then calls Shutdown exactly once. Grounded on the teacher's
// AsyncFrameWriter.Start goroutine: a real hardware build instead calls
// tick() directly from a codec DMA-complete callback and never calls Run.
func (m *Mixer) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.blockPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return m.Shutdown()
		case start := <-ticker.C:
			m.tick()
			if elapsed := time.Since(start); elapsed > m.blockPeriod {
				m.warnOverrun(elapsed)
			}
		}
	}
}

func (m *Mixer) warnOverrun(elapsed time.Duration) {
	atomic.AddUint64(&m.overrunCount, 1)
	if time.Since(m.lastOverrunLogAt) < time.Second {
		return
	}
	m.lastOverrunLogAt = time.Now()
	log.Printf("mixer: tick overran block budget (%s > %s)", elapsed, m.blockPeriod)
}

// OverrunCount returns the number of ticks that have ever exceeded the
// block period, for internal/telemetry's underrun gauge. Every overrun is
// counted here even when warnOverrun's own log line was rate-limited.
func (m *Mixer) OverrunCount() uint64 {
	return atomic.LoadUint64(&m.overrunCount)
}

// LastTickDuration returns the wall-clock cost of the most recently
// completed tick, for internal/telemetry's tick-duration histogram.
func (m *Mixer) LastTickDuration() time.Duration {
	return time.Duration(atomic.LoadInt64(&m.lastTickNanos))
}

// tick executes the §4.3 six-step sequence: drain commands, mix, apply
// lifecycle, snapshot status, soft-clip, push to the sink.
func (m *Mixer) tick() {
	start := time.Now()
	defer func() { atomic.StoreInt64(&m.lastTickNanos, int64(time.Since(start))) }()

	m.drainScratch = m.ring.drainAll(m.drainScratch[:0])
	for _, cmd := range m.drainScratch {
		m.applyCommand(cmd)
	}

	for i := range m.mixL {
		m.mixL[i] = 0
		m.mixR[i] = 0
	}

	master := m.MasterVolume()
	n := m.cfg.BlockSize
	for _, c := range m.channels {
		if c.active {
			c.mixBlock(m.mixL, m.mixR, n, master, m.readBuf)
		} else if c.hasQueued() {
			// A queue issued while the channel was already idle has no
			// source-end event to dequeue it; start the head item now
			// (spec §5).
			c.tryDequeueAndPlay()
		}
	}

	m.refreshStatus()

	for i := 0; i < n; i++ {
		l := softClip(m.mixL[i])
		r := softClip(m.mixR[i])
		if err := m.snk.WriteStereoFrame(l, r); err != nil {
			log.Printf("mixer: sink write failed: %v", err)
			return
		}
	}
}

// softClip applies the spec §4.3 piecewise-linear knee, then a final hard
// clamp so the output is always within int16 range even when the
// piecewise step alone would not be (spec §8 invariant 2, §9's "fix its
// exact output at the knee points" note).
func softClip(s int32) int16 {
	switch {
	case s > 32767:
		s = 32767 - (32767-s)/8
	case s < -32768:
		s = -32768 - (-32768-s)/8
	}
	if s > 32767 {
		s = 32767
	}
	if s < -32768 {
		s = -32768
	}
	return int16(s)
}

func (m *Mixer) refreshStatus() {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	for i, c := range m.channels {
		st := &m.status[i]
		st.IsPlaying = c.active
		st.Filename = c.filename
		st.Gain = c.gain
		st.Routing = c.routing
		st.LoopRemaining = c.loopRemaining
		st.LoopInitial = c.loopInitial
		st.IsLooping = c.loopRemaining != 0

		if c.active && c.source != nil {
			st.SampleRate = c.source.SampleRate()
			st.NumChannels = c.source.Channels()
			st.BitsPerSample = c.source.BitsPerSample()
			st.TotalFrames = c.source.TotalFrames()
			if c.loopRemaining == LoopInfinite {
				st.RemainingMs = -1
			} else {
				st.RemainingMs = c.source.FramesRemaining() * 1000 / int64(c.source.SampleRate())
			}
		} else {
			st.RemainingMs = 0
		}
	}
}

func (m *Mixer) channelInRange(ch int) bool {
	return ch >= 0 && ch < len(m.channels)
}

func (m *Mixer) applyCommand(cmd Command) {
	switch cmd.Kind {
	case CmdPlay:
		if err := m.Play(cmd.Channel, cmd.Filename, cmd.Options); err != nil {
			log.Printf("mixer: play on channel %d failed: %v", cmd.Channel, err)
		}
	case CmdStop:
		_ = m.Stop(cmd.Channel, cmd.StopMode)
	case CmdStopAll:
		m.StopAll(cmd.StopMode)
	case CmdSetVolume:
		_ = m.SetVolume(cmd.Channel, cmd.Gain)
	case CmdSetMasterVolume:
		m.SetMasterVolume(cmd.Gain)
	case CmdSetRouting:
		_ = m.SetRouting(cmd.Channel, cmd.Routing)
	case CmdStopLooping:
		if cmd.Channel == AllChannels {
			m.StopLoopingAll()
		} else {
			_ = m.StopLooping(cmd.Channel)
		}
	case CmdQueue:
		if err := m.Queue(cmd.Channel, cmd.Filename, cmd.Options, cmd.Behavior); err != nil {
			log.Printf("mixer: queue on channel %d failed: %v", cmd.Channel, err)
		}
	case CmdClearQueue:
		if cmd.Channel == AllChannels {
			m.ClearQueueAll()
		} else {
			_ = m.ClearQueue(cmd.Channel)
		}
	}
}

// --- Synchronous API (spec §4.3: called directly only in single-threaded
// mode; otherwise reached via applyCommand from tick's drain step). ---

// Play opens filename on ch, replacing whatever the channel was playing.
func (m *Mixer) Play(ch int, filename string, opts PlayOptions) error {
	if !m.channelInRange(ch) {
		return errChannelOutOfRange
	}
	return m.channels[ch].play(filename, opts)
}

// Stop terminates ch per mode.
func (m *Mixer) Stop(ch int, mode StopMode) error {
	if !m.channelInRange(ch) {
		return errChannelOutOfRange
	}
	m.stopChannel(m.channels[ch], mode)
	return nil
}

func (m *Mixer) stopChannel(c *Channel, mode StopMode) {
	switch mode {
	case StopImmediate:
		c.stopImmediate()
	case StopFade:
		c.stopFade(m.cfg.SampleRate, m.cfg.FadeDurationMs)
	case StopLoopEnd:
		c.stopLoopEnd()
	}
}

// StopAll applies mode to every channel.
func (m *Mixer) StopAll(mode StopMode) {
	for _, c := range m.channels {
		m.stopChannel(c, mode)
	}
}

// StopLooping clears ch's loop flags without otherwise interrupting it.
func (m *Mixer) StopLooping(ch int) error {
	if !m.channelInRange(ch) {
		return errChannelOutOfRange
	}
	m.channels[ch].stopLoopEnd()
	return nil
}

// StopLoopingAll clears loop flags on every channel.
func (m *Mixer) StopLoopingAll() {
	for _, c := range m.channels {
		c.stopLoopEnd()
	}
}

// Queue enqueues a deferred play request on ch, or — if ch is currently
// looping infinitely and behavior is QueueStopImmediate — preempts it
// this tick instead of queueing (spec §8 invariant 6).
func (m *Mixer) Queue(ch int, filename string, opts PlayOptions, behavior QueueLoopBehavior) error {
	if !m.channelInRange(ch) {
		return errChannelOutOfRange
	}
	if opts.LoopCount < 0 && opts.LoopCount != LoopInfinite {
		return audioerr.New(audioerr.UnsupportedFormat, "mixer.Queue", "invalid loop count")
	}
	if opts.LoopCount == LoopInfinite {
		return audioerr.New(audioerr.UnsupportedFormat, "mixer.Queue", "cannot queue an infinite loop")
	}

	c := m.channels[ch]
	if c.active && c.loopRemaining == LoopInfinite && behavior == QueueStopImmediate {
		c.stopImmediate()
		return c.play(filename, opts)
	}

	item := QueuedItem{Filename: filename, Options: opts, LoopBehavior: behavior}
	if !c.enqueueItem(item) {
		return audioerr.New(audioerr.QueueFull, "mixer.Queue", "per-channel queue full")
	}
	return nil
}

// ClearQueue empties ch's queue.
func (m *Mixer) ClearQueue(ch int) error {
	if !m.channelInRange(ch) {
		return errChannelOutOfRange
	}
	m.channels[ch].clearQueue()
	return nil
}

// ClearQueueAll empties every channel's queue.
func (m *Mixer) ClearQueueAll() {
	for _, c := range m.channels {
		c.clearQueue()
	}
}

// SetVolume sets ch's gain, clamped to [0,1].
func (m *Mixer) SetVolume(ch int, gain float64) error {
	if !m.channelInRange(ch) {
		return errChannelOutOfRange
	}
	m.channels[ch].setGain(gain)
	return nil
}

// SetMasterVolume sets the master gain, clamped to [0,1].
func (m *Mixer) SetMasterVolume(gain float64) {
	m.masterMu.Lock()
	defer m.masterMu.Unlock()
	m.masterGain = clampUnitGain(gain)
}

// MasterVolume returns the current master gain.
func (m *Mixer) MasterVolume() float64 {
	m.masterMu.RLock()
	defer m.masterMu.RUnlock()
	return m.masterGain
}

// SetRouting sets ch's routing.
func (m *Mixer) SetRouting(ch int, routing Routing) error {
	if !m.channelInRange(ch) {
		return errChannelOutOfRange
	}
	m.channels[ch].setRouting(routing)
	return nil
}

// --- Asynchronous API: thread-safe wrappers that enqueue a Command. ---

func (m *Mixer) PlayAsync(ch int, filename string, opts PlayOptions) bool {
	return m.ring.push(Command{Kind: CmdPlay, Channel: ch, Filename: filename, Options: opts})
}

func (m *Mixer) StopAsync(ch int, mode StopMode) bool {
	return m.ring.push(Command{Kind: CmdStop, Channel: ch, StopMode: mode})
}

func (m *Mixer) StopAllAsync(mode StopMode) bool {
	return m.ring.push(Command{Kind: CmdStopAll, Channel: AllChannels, StopMode: mode})
}

func (m *Mixer) SetVolumeAsync(ch int, gain float64) bool {
	return m.ring.push(Command{Kind: CmdSetVolume, Channel: ch, Gain: gain})
}

func (m *Mixer) SetMasterVolumeAsync(gain float64) bool {
	return m.ring.push(Command{Kind: CmdSetMasterVolume, Gain: gain})
}

func (m *Mixer) SetRoutingAsync(ch int, routing Routing) bool {
	return m.ring.push(Command{Kind: CmdSetRouting, Channel: ch, Routing: routing})
}

func (m *Mixer) StopLoopingAsync(ch int) bool {
	return m.ring.push(Command{Kind: CmdStopLooping, Channel: ch})
}

func (m *Mixer) StopLoopingAllAsync() bool {
	return m.ring.push(Command{Kind: CmdStopLooping, Channel: AllChannels})
}

func (m *Mixer) QueueAsync(ch int, filename string, opts PlayOptions, behavior QueueLoopBehavior) bool {
	return m.ring.push(Command{Kind: CmdQueue, Channel: ch, Filename: filename, Options: opts, Behavior: behavior})
}

func (m *Mixer) ClearQueueAsync(ch int) bool {
	return m.ring.push(Command{Kind: CmdClearQueue, Channel: ch})
}

func (m *Mixer) ClearQueueAllAsync() bool {
	return m.ring.push(Command{Kind: CmdClearQueue, Channel: AllChannels})
}

// RingStats exposes command-ring metrics for internal/telemetry.
func (m *Mixer) RingStats() RingStats {
	return m.ring.stats()
}

// --- Introspection: read the published status snapshot. ---

func (m *Mixer) snapshot(ch int) (ChannelStatus, bool) {
	if !m.channelInRange(ch) {
		return ChannelStatus{}, false
	}
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	return m.status[ch], true
}

func (m *Mixer) IsPlaying(ch int) bool {
	st, ok := m.snapshot(ch)
	return ok && st.IsPlaying
}

// ActiveChannelCount returns how many channels are currently playing, per
// the last published status snapshot.
func (m *Mixer) ActiveChannelCount() int {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	count := 0
	for _, st := range m.status {
		if st.IsPlaying {
			count++
		}
	}
	return count
}

func (m *Mixer) IsAnyPlaying() bool {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	for _, st := range m.status {
		if st.IsPlaying {
			return true
		}
	}
	return false
}

func (m *Mixer) RemainingMs(ch int) int64 {
	st, _ := m.snapshot(ch)
	return st.RemainingMs
}

func (m *Mixer) ChannelFilename(ch int) string {
	st, _ := m.snapshot(ch)
	return st.Filename
}

func (m *Mixer) ChannelGain(ch int) float64 {
	st, _ := m.snapshot(ch)
	return st.Gain
}

func (m *Mixer) ChannelIsLooping(ch int) bool {
	st, _ := m.snapshot(ch)
	return st.IsLooping
}

func (m *Mixer) ChannelLoopRemaining(ch int) int {
	st, _ := m.snapshot(ch)
	return st.LoopRemaining
}

func (m *Mixer) ChannelLoopInitial(ch int) int {
	st, _ := m.snapshot(ch)
	return st.LoopInitial
}

func (m *Mixer) ChannelRouting(ch int) Routing {
	st, _ := m.snapshot(ch)
	return st.Routing
}

func (m *Mixer) ChannelSampleRate(ch int) int {
	st, _ := m.snapshot(ch)
	return st.SampleRate
}

func (m *Mixer) ChannelNumChannels(ch int) int {
	st, _ := m.snapshot(ch)
	return st.NumChannels
}

func (m *Mixer) ChannelBitsPerSample(ch int) int {
	st, _ := m.snapshot(ch)
	return st.BitsPerSample
}

func (m *Mixer) ChannelTotalFrames(ch int) int64 {
	st, _ := m.snapshot(ch)
	return st.TotalFrames
}

// NumChannels returns the number of channel slots this mixer was built with.
func (m *Mixer) NumChannels() int {
	return len(m.channels)
}
