package codec

import "scalefx-mixer/internal/audioerr"

// TI Class-D amplifier (TAS5713-class) register map: a different shape
// from the Wolfson driver (8-bit linear volume table, dedicated mute
// register, shutdown pin modeled as a register bit) to exercise a second
// driver shape over the same Bus/Controller seam.
const (
	tiRegReset     = 0x00
	tiRegPowerCtrl = 0x01
	tiRegVolumeL   = 0x10
	tiRegVolumeR   = 0x11
	tiRegMute      = 0x02
	tiMuteBit      = 1 << 0
	tiShutdownBit  = 1 << 1
)

// TIClassDDriver drives a TI-style Class-D amplifier.
type TIClassDDriver struct {
	bus  Bus
	addr uint8

	cache       [256]uint8
	initialized bool
	muted       bool
	speakersOn  bool
	volume      float64
}

// NewTIClassDDriver creates a driver targeting the given bus address.
func NewTIClassDDriver(bus Bus, addr uint8) *TIClassDDriver {
	return &TIClassDDriver{bus: bus, addr: addr, volume: 0.7}
}

func (t *TIClassDDriver) writeReg(reg, value uint8) error {
	if err := t.bus.WriteRegister(t.addr, reg, value); err != nil {
		return audioerr.Wrap(audioerr.CodecControlFault, "codec.TIClassD.writeReg", err)
	}
	t.cache[reg] = value
	return nil
}

// Begin resets the amplifier, takes it out of shutdown, and applies a
// default volume.
func (t *TIClassDDriver) Begin(sampleRate int) error {
	if err := t.writeReg(tiRegReset, 0x01); err != nil {
		return err
	}
	if err := t.writeReg(tiRegPowerCtrl, 0x00); err != nil { // clear shutdown bit
		return err
	}
	t.speakersOn = true
	if err := t.SetVolume(0.7); err != nil {
		return err
	}
	t.initialized = true
	t.muted = false
	return nil
}

// Reset re-applies Begin's sequence.
func (t *TIClassDDriver) Reset() error {
	t.initialized = false
	return t.Begin(0)
}

// SetVolume writes an 8-bit linear volume to both channels.
func (t *TIClassDDriver) SetVolume(gain float64) error {
	field := gainTo8Bit(gain)
	if err := t.writeReg(tiRegVolumeL, field); err != nil {
		return err
	}
	if err := t.writeReg(tiRegVolumeR, field); err != nil {
		return err
	}
	t.volume = clampGain(gain)
	return nil
}

// SetMute sets or clears the dedicated mute register bit, leaving the
// volume registers untouched.
func (t *TIClassDDriver) SetMute(mute bool) error {
	value := t.cache[tiRegMute] &^ tiMuteBit
	if mute {
		value |= tiMuteBit
	}
	if err := t.writeReg(tiRegMute, value); err != nil {
		return err
	}
	t.muted = mute
	return nil
}

// ModelName identifies the driver.
func (t *TIClassDDriver) ModelName() string { return "ti-classd" }

// IsInitialized reports whether Begin has completed.
func (t *TIClassDDriver) IsInitialized() bool { return t.initialized }

// EnableSpeakers implements codec.SpeakerEnabler via the shutdown bit.
func (t *TIClassDDriver) EnableSpeakers(enabled bool) error {
	value := t.cache[tiRegPowerCtrl] &^ tiShutdownBit
	if !enabled {
		value |= tiShutdownBit
	}
	if err := t.writeReg(tiRegPowerCtrl, value); err != nil {
		return err
	}
	t.speakersOn = enabled
	return nil
}
