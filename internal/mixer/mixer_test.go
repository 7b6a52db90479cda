package mixer

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scalefx-mixer/internal/config"
	"scalefx-mixer/internal/sink"
	"scalefx-mixer/internal/wav"
)

// --- in-memory WAV fixture storage, mirroring internal/wav's test helpers
// but built from this package since those helpers are unexported there. ---

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

type memStorage map[string][]byte

func (m memStorage) Open(path string) (wav.StorageFile, error) {
	data, ok := m[path]
	if !ok {
		return nil, io.ErrClosedPipe
	}
	return memFile{bytes.NewReader(data)}, nil
}

func appendChunk(buf *bytes.Buffer, id string, payload []byte) {
	buf.WriteString(id)
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(payload)))
	buf.Write(size[:])
	buf.Write(payload)
	if len(payload)%2 == 1 {
		buf.WriteByte(0)
	}
}

// buildWAV constructs a minimal 16-bit PCM WAV file from int16 samples
// (already interleaved per channels).
func buildWAV(sampleRate, channels int, samples []int16) []byte {
	var fmtChunk bytes.Buffer
	bitsPerSample := 16
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	binary.Write(&fmtChunk, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&fmtChunk, binary.LittleEndian, uint16(channels))
	binary.Write(&fmtChunk, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&fmtChunk, binary.LittleEndian, uint32(byteRate))
	binary.Write(&fmtChunk, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&fmtChunk, binary.LittleEndian, uint16(bitsPerSample))

	var dataChunk bytes.Buffer
	for _, s := range samples {
		binary.Write(&dataChunk, binary.LittleEndian, s)
	}

	var body bytes.Buffer
	body.WriteString("WAVE")
	appendChunk(&body, "fmt ", fmtChunk.Bytes())
	appendChunk(&body, "data", dataChunk.Bytes())

	var out bytes.Buffer
	out.WriteString("RIFF")
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(body.Len()))
	out.Write(size[:])
	out.Write(body.Bytes())
	return out.Bytes()
}

// sineTone returns n stereo frames (interleaved L,R) of a sine with the
// given amplitude and period in samples.
func sineTone(n int, amplitude float64, period float64) []int16 {
	out := make([]int16, n*2)
	for i := 0; i < n; i++ {
		v := int16(amplitude * math.Sin(2*math.Pi*float64(i)/period))
		out[i*2] = v
		out[i*2+1] = v
	}
	return out
}

func dcTone(n int, value int16) []int16 {
	out := make([]int16, n*2)
	for i := 0; i < n; i++ {
		out[i*2] = value
		out[i*2+1] = value
	}
	return out
}

// runUntilIdle ticks at least once (status is only published by tick, so
// IsPlaying reads stale/zero before the first one) and keeps ticking
// until the channel's published status goes idle.
func runUntilIdle(mix *Mixer, ch int) {
	for {
		mix.tick()
		if !mix.IsPlaying(ch) {
			return
		}
	}
}

func testMixer(t *testing.T, store memStorage, m *sink.MockSink) (*Mixer, config.MixerConfig) {
	t.Helper()
	cfg := config.DefaultMixer()
	cfg.NumChannels = 4
	mix := New(cfg, store, m, nil)
	require.NoError(t, mix.Begin())
	return mix, cfg
}

func TestSoftClipKneePoints(t *testing.T) {
	assert.EqualValues(t, 32767, softClip(32767))
	assert.EqualValues(t, 32767, softClip(32768))
	assert.EqualValues(t, -32768, softClip(-32768))
	assert.EqualValues(t, -32768, softClip(-32769))
	assert.EqualValues(t, 0, softClip(0))
	// Large overflow must still land in range (§8 invariant 2).
	assert.LessOrEqual(t, int32(softClip(1<<30)), int32(32767))
	assert.GreaterOrEqual(t, int32(softClip(-(1<<30))), int32(-32768))
}

func TestPlayFullScaleSineProducesExpectedStats(t *testing.T) {
	const sr = 44100
	samples := sineTone(sr, 32000, 44.1) // ~1kHz at 44100 Hz
	store := memStorage{"tone.wav": buildWAV(sr, 2, samples)}
	m := sink.NewMockSink(0)
	mix, cfg := testMixer(t, store, m)

	require.NoError(t, mix.Play(0, "tone.wav", PlayOptions{Gain: 1.0, Routing: RoutingStereo}))

	ticksNeeded := (sr + cfg.BlockSize - 1) / cfg.BlockSize
	for i := 0; i < ticksNeeded; i++ {
		mix.tick()
	}

	st := m.Stats()
	assert.InDelta(t, 32000, float64(st.PeakL), 200)
	assert.False(t, mix.IsPlaying(0))
}

func TestPlayHalfGainHalvesPeak(t *testing.T) {
	const sr = 44100
	samples := sineTone(sr, 32000, 44.1)
	store := memStorage{"tone.wav": buildWAV(sr, 2, samples)}
	m := sink.NewMockSink(0)
	mix, cfg := testMixer(t, store, m)

	require.NoError(t, mix.Play(0, "tone.wav", PlayOptions{Gain: 0.5, Routing: RoutingStereo}))
	for i := 0; i < (sr+cfg.BlockSize-1)/cfg.BlockSize; i++ {
		mix.tick()
	}

	st := m.Stats()
	assert.InDelta(t, 16000, float64(st.PeakL), 200)
}

func TestPlayLeftOnlyRoutingSilencesRight(t *testing.T) {
	const sr = 44100
	samples := sineTone(2000, 32000, 44.1)
	store := memStorage{"tone.wav": buildWAV(sr, 2, samples)}
	m := sink.NewMockSink(0)
	mix, _ := testMixer(t, store, m)

	require.NoError(t, mix.Play(0, "tone.wav", PlayOptions{Gain: 1.0, Routing: RoutingLeftOnly}))
	for i := 0; i < 4; i++ {
		mix.tick()
	}

	st := m.Stats()
	assert.Zero(t, st.PeakR)
	assert.NotZero(t, st.PeakL)
}

func TestLoopCountPlaysExactlyKPlusOneTimes(t *testing.T) {
	const frames = 100
	samples := dcTone(frames, 10000)
	store := memStorage{"a.wav": buildWAV(44100, 2, samples)}
	m := sink.NewMockSink(0)
	mix, _ := testMixer(t, store, m)

	require.NoError(t, mix.Play(0, "a.wav", PlayOptions{Gain: 1.0, Routing: RoutingStereo, LoopCount: 2}))

	runUntilIdle(mix, 0)

	st := m.Stats()
	assert.EqualValues(t, frames*3, st.TotalPairs)
}

func TestNoLoopEmitsExactlyTotalFrames(t *testing.T) {
	const frames = 77
	samples := dcTone(frames, 5000)
	store := memStorage{"a.wav": buildWAV(44100, 2, samples)}
	m := sink.NewMockSink(0)
	mix, _ := testMixer(t, store, m)

	require.NoError(t, mix.Play(0, "a.wav", PlayOptions{Gain: 1.0, Routing: RoutingStereo, LoopCount: 0}))
	runUntilIdle(mix, 0)

	assert.EqualValues(t, frames, m.Stats().TotalPairs)
}

func TestQueueFinishLoopStartsExactlyAtBoundary(t *testing.T) {
	const longFrames = 1000
	const shortFrames = 50
	store := memStorage{
		"long.wav":  buildWAV(44100, 2, dcTone(longFrames, 8000)),
		"short.wav": buildWAV(44100, 2, dcTone(shortFrames, 20000)),
	}
	m := sink.NewMockSink(longFrames*2 + shortFrames*2)
	mix, _ := testMixer(t, store, m)

	require.NoError(t, mix.Play(0, "long.wav", PlayOptions{Gain: 1.0, Routing: RoutingStereo, LoopCount: LoopInfinite}))
	require.NoError(t, mix.Queue(0, "short.wav", PlayOptions{Gain: 1.0, Routing: RoutingStereo, LoopCount: 0}, QueueFinishLoop))

	runUntilIdle(mix, 0)
	assert.EqualValues(t, longFrames+shortFrames, m.Stats().TotalPairs)

	// The boundary must land on the exact output sample: the last "long"
	// sample is 8000, the first "short" sample is 20000, with no mixing
	// of the two (§8 scenario 5).
	capture := m.Capture()
	assert.EqualValues(t, 8000, capture[(longFrames-1)*2])
	assert.EqualValues(t, 20000, capture[longFrames*2])
}

func TestQueueStopImmediatePreemptsInfiniteLoop(t *testing.T) {
	store := memStorage{
		"long.wav":  buildWAV(44100, 2, dcTone(1000, 8000)),
		"short.wav": buildWAV(44100, 2, dcTone(50, 20000)),
	}
	m := sink.NewMockSink(0)
	mix, _ := testMixer(t, store, m)

	require.NoError(t, mix.Play(0, "long.wav", PlayOptions{Gain: 1.0, Routing: RoutingStereo, LoopCount: LoopInfinite}))
	mix.tick()
	require.NoError(t, mix.Queue(0, "short.wav", PlayOptions{Gain: 1.0, Routing: RoutingStereo, LoopCount: 0}, QueueStopImmediate))
	mix.tick() // status snapshot only refreshes once per tick

	assert.Equal(t, "short.wav", mix.ChannelFilename(0))
}

func TestQueueRejectsInfiniteLoopCount(t *testing.T) {
	store := memStorage{"a.wav": buildWAV(44100, 2, dcTone(10, 100))}
	m := sink.NewMockSink(0)
	mix, _ := testMixer(t, store, m)

	err := mix.Queue(0, "a.wav", PlayOptions{LoopCount: LoopInfinite}, QueueFinishLoop)
	assert.Error(t, err)
}

func TestStopFadeRampsToZeroOverFixedDuration(t *testing.T) {
	const sr = 44100
	const blockSize = 512
	samples := dcTone(sr, 32767)
	store := memStorage{"a.wav": buildWAV(sr, 2, samples)}
	m := sink.NewMockSink(0)
	cfg := config.DefaultMixer()
	cfg.NumChannels = 1
	cfg.BlockSize = blockSize
	mix := New(cfg, store, m, nil)
	require.NoError(t, mix.Begin())

	require.NoError(t, mix.Play(0, "a.wav", PlayOptions{Gain: 1.0, Routing: RoutingStereo}))
	mix.tick() // one full-scale block before the fade starts

	require.NoError(t, mix.Stop(0, StopFade))

	expectedFadeFrames := (50*sr + 999) / 1000 // ceil(50ms * sr / 1000) = 2205
	for mix.IsPlaying(0) {
		mix.tick()
	}

	framesAfterFadeStarted := m.Stats().TotalPairs - int64(blockSize)
	assert.InDelta(t, expectedFadeFrames, framesAfterFadeStarted, float64(blockSize))
}

func TestMasterAndChannelGainComposeMultiplicatively(t *testing.T) {
	const sr = 44100
	samples := dcTone(100, 10000)
	store := memStorage{"a.wav": buildWAV(sr, 2, samples)}
	m := sink.NewMockSink(0)
	mix, _ := testMixer(t, store, m)

	mix.SetMasterVolume(0.5)
	require.NoError(t, mix.Play(0, "a.wav", PlayOptions{Gain: 0.5, Routing: RoutingStereo}))
	mix.tick()

	assert.InDelta(t, 2500, float64(m.Stats().PeakL), 5) // 10000 * 0.5 * 0.5
}

func TestChannelOutOfRangeIsIgnored(t *testing.T) {
	store := memStorage{}
	m := sink.NewMockSink(0)
	mix, _ := testMixer(t, store, m)

	assert.Error(t, mix.Play(99, "nope.wav", PlayOptions{}))
	assert.False(t, mix.IsPlaying(99))
}

func TestAsyncAPIDrainsOnNextTick(t *testing.T) {
	// Longer than one 512-frame block, so the channel is still playing
	// when the first tick publishes its status.
	store := memStorage{"a.wav": buildWAV(44100, 2, dcTone(2000, 1000))}
	m := sink.NewMockSink(0)
	mix, _ := testMixer(t, store, m)

	ok := mix.PlayAsync(0, "a.wav", PlayOptions{Gain: 1.0, Routing: RoutingStereo})
	assert.True(t, ok)
	assert.False(t, mix.IsPlaying(0)) // not applied until drained

	mix.tick()
	assert.True(t, mix.IsPlaying(0))
}

func TestCommandRingDropsWhenFull(t *testing.T) {
	r := newCommandRing(2)
	assert.True(t, r.push(Command{Kind: CmdSetMasterVolume, Gain: 1}))
	assert.True(t, r.push(Command{Kind: CmdSetMasterVolume, Gain: 1}))
	assert.False(t, r.push(Command{Kind: CmdSetMasterVolume, Gain: 1}))

	stats := r.stats()
	assert.EqualValues(t, 2, stats.Enqueued)
	assert.EqualValues(t, 1, stats.Dropped)
	assert.EqualValues(t, 2, stats.Pending)
}

func TestClearQueueLeavesNoQueuedItem(t *testing.T) {
	store := memStorage{"a.wav": buildWAV(44100, 2, dcTone(10, 100))}
	m := sink.NewMockSink(0)
	mix, _ := testMixer(t, store, m)

	require.NoError(t, mix.Queue(0, "a.wav", PlayOptions{LoopCount: 0}, QueueFinishLoop))
	require.NoError(t, mix.ClearQueue(0))
	assert.False(t, mix.channels[0].hasQueued())
}

func TestMixerRunStopsOnContextCancel(t *testing.T) {
	store := memStorage{"a.wav": buildWAV(44100, 2, dcTone(20000, 1000))}
	m := sink.NewMockSink(0)
	cfg := config.DefaultMixer()
	cfg.BlockSize = 64
	mix := New(cfg, store, m, nil)
	require.NoError(t, mix.Begin())
	require.NoError(t, mix.Play(0, "a.wav", PlayOptions{Gain: 1.0, Routing: RoutingStereo, LoopCount: LoopInfinite}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mix.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
	assert.False(t, m.IsRunning())
}
