package codec

// SimpleDACDriver models a bus-less fixed-function DAC (e.g. a PWM or
// R-2R ladder DAC with no register interface): volume and mute are pure
// software state, tracked here so the mixer's codec.Controller seam works
// uniformly across hardware that has nothing to poke. Grounded on the
// same "satisfy the interface, do less" shape as the teacher's no-op
// capabilities (internal/avatar's disabled-feature stubs).
type SimpleDACDriver struct {
	initialized bool
	muted       bool
	volume      float64
}

// NewSimpleDACDriver creates a driver with no register-level backing.
func NewSimpleDACDriver() *SimpleDACDriver {
	return &SimpleDACDriver{volume: 1.0}
}

// Begin marks the DAC ready; there is no clock tree or power sequencing
// to perform.
func (s *SimpleDACDriver) Begin(sampleRate int) error {
	s.initialized = true
	s.muted = false
	return nil
}

// Reset restores default volume and clears mute.
func (s *SimpleDACDriver) Reset() error {
	s.volume = 1.0
	s.muted = false
	return nil
}

// SetVolume records the gain; a fixed-function DAC has no register to
// write, so the mixer's own per-channel gain is this driver's only volume
// control.
func (s *SimpleDACDriver) SetVolume(gain float64) error {
	s.volume = clampGain(gain)
	return nil
}

// SetMute records mute state without touching volume.
func (s *SimpleDACDriver) SetMute(mute bool) error {
	s.muted = mute
	return nil
}

// ModelName identifies the driver.
func (s *SimpleDACDriver) ModelName() string { return "simple-dac" }

// IsInitialized reports whether Begin has completed.
func (s *SimpleDACDriver) IsInitialized() bool { return s.initialized }
