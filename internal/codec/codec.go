// Package codec defines the audio-codec capability the mixer configures
// once at startup and occasionally reconfigures (volume/mute) from either
// execution context. Concrete drivers implement Controller by poking
// device-specific registers over a control Bus; see spec §4.6 and §9.
package codec

// Controller is the capability every codec driver satisfies. It is held
// by the mixer as an interface (dynamic dispatch) because it sits on the
// control-plane cold path, never the per-block hot path.
type Controller interface {
	// Begin brings the codec from reset into an output-ready state:
	// clock tree, interface format, power rails, output mixers, default
	// volumes.
	Begin(sampleRate int) error
	// Reset forces the codec back to a known default state.
	Reset() error
	// SetVolume scales output by a codec-specific, monotonic, bounded
	// mapping. gain is clamped to [0,1].
	SetVolume(gain float64) error
	// SetMute mutes or unmutes without losing volume state.
	SetMute(mute bool) error
	// ModelName identifies the concrete driver.
	ModelName() string
	// IsInitialized reports whether Begin has completed successfully.
	IsInitialized() bool
}

// SpeakerEnabler is an optional capability for codecs with a speaker
// output path.
type SpeakerEnabler interface {
	EnableSpeakers(enabled bool) error
}

// HeadphoneEnabler is an optional capability for codecs with a headphone
// output path.
type HeadphoneEnabler interface {
	EnableHeadphones(enabled bool) error
}

// HeadphoneVolumeSetter is an optional capability for codecs with a
// distinct headphone volume control.
type HeadphoneVolumeSetter interface {
	SetHeadphoneVolume(v uint8) error
}

// SpeakerVolumeSetter is an optional capability for codecs with a
// distinct speaker volume control.
type SpeakerVolumeSetter interface {
	SetSpeakerVolume(v uint8) error
}

func clampGain(gain float64) float64 {
	if gain < 0 {
		return 0
	}
	if gain > 1 {
		return 1
	}
	return gain
}

// gainTo7Bit maps a [0,1] gain onto a 7-bit (0-127) register field, the
// common width for Wolfson-family headphone/speaker volume registers.
func gainTo7Bit(gain float64) uint8 {
	return uint8(clampGain(gain) * 127)
}

// gainTo8Bit maps a [0,1] gain onto a full 8-bit (0-255) attenuation
// field, the common width for Class-D amplifier volume tables.
func gainTo8Bit(gain float64) uint8 {
	return uint8(clampGain(gain) * 255)
}
