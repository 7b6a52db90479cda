// Package sink defines the narrow capability the mixer pushes finished
// stereo blocks into: a real I2S/ALSA transport, or an in-memory mock
// used by tests to assert on the resulting waveform.
package sink

// Sink accepts interleaved 16-bit stereo samples at a fixed sample rate.
// WriteStereoFrame blocks until the pair has been accepted by the
// transport; that blocking behavior is the mixer's pacing mechanism (see
// spec §5): one tick should yield roughly one block's worth of real time.
type Sink interface {
	// Begin configures the transport for the given sample rate.
	Begin(sampleRate int) error
	// WriteStereoFrame pushes one (left, right) sample pair.
	WriteStereoFrame(left, right int16) error
	// End stops the transport.
	End() error
}
