package codec

import "scalefx-mixer/internal/audioerr"

// Wolfson-family (WM8960-class) register map. Simplified to the subset a
// scale-model effects controller actually drives; real hardware exposes
// far more (3D enhancement, ADC path, GPIO) that this driver never touches.
const (
	wolfsonRegReset    = 0x0F
	wolfsonRegPower1   = 0x19
	wolfsonRegPower2   = 0x1A
	wolfsonRegPower3   = 0x2F
	wolfsonRegClock    = 0x04
	wolfsonRegIface    = 0x07
	wolfsonRegDacCtrl  = 0x05 // bit0: soft-mute
	wolfsonRegLoutVol  = 0x02
	wolfsonRegRoutVol  = 0x03
	wolfsonMuteBit     = 1 << 0
	wolfsonDefaultGain = 0.7
)

// WolfsonDriver drives a Wolfson/WM8960-class headphone/speaker codec
// over Bus. It keeps a write-through register cache so SetMute never has
// to re-derive the previously written volume field.
type WolfsonDriver struct {
	bus  Bus
	addr uint8

	cache       [256]uint8
	initialized bool
	muted       bool
	volume      float64 // last gain passed to SetVolume, independent of mute
}

// NewWolfsonDriver creates a driver targeting the given 7-bit bus address.
func NewWolfsonDriver(bus Bus, addr uint8) *WolfsonDriver {
	return &WolfsonDriver{bus: bus, addr: addr, volume: wolfsonDefaultGain}
}

func (w *WolfsonDriver) writeReg(reg, value uint8) error {
	if err := w.bus.WriteRegister(w.addr, reg, value); err != nil {
		return audioerr.Wrap(audioerr.CodecControlFault, "codec.Wolfson.writeReg", err)
	}
	w.cache[reg] = value
	return nil
}

// Begin sequences reset, power-up, clock, interface format, and a default
// volume, the order a WM8960-class part's datasheet calls for.
func (w *WolfsonDriver) Begin(sampleRate int) error {
	if err := w.writeReg(wolfsonRegReset, 0x00); err != nil {
		return err
	}
	if err := w.writeReg(wolfsonRegPower1, 0xFE); err != nil {
		return err
	}
	if err := w.writeReg(wolfsonRegPower2, 0xFF); err != nil {
		return err
	}
	if err := w.writeReg(wolfsonRegPower3, 0x0C); err != nil {
		return err
	}
	if err := w.writeReg(wolfsonRegClock, clockDividerFor(sampleRate)); err != nil {
		return err
	}
	if err := w.writeReg(wolfsonRegIface, 0x02); err != nil { // I2S, 16-bit
		return err
	}
	if err := w.SetVolume(wolfsonDefaultGain); err != nil {
		return err
	}
	w.initialized = true
	w.muted = false
	return nil
}

// clockDividerFor picks a coarse MCLK/sample-rate divider. Every rate maps
// to one of three codes; rates outside 8kHz-192kHz are not rejected here
// and fall into the lowest or highest band.
func clockDividerFor(sampleRate int) uint8 {
	switch {
	case sampleRate <= 16000:
		return 0x00
	case sampleRate <= 48000:
		return 0x02
	default:
		return 0x04
	}
}

// Reset re-applies the power-up sequence as if from cold. It doesn't know
// the original sample rate, so it re-derives the clock divider for
// config.DefaultMixer's rate; callers that configured a different rate
// should call Begin directly instead.
func (w *WolfsonDriver) Reset() error {
	w.initialized = false
	return w.Begin(44100)
}

// SetVolume writes the same 7-bit field to the left and right output
// volume registers, one after the other, independent of mute state. No
// update-latch bit is set.
func (w *WolfsonDriver) SetVolume(gain float64) error {
	gain = clampGain(gain)
	field := gainTo7Bit(gain)
	if err := w.writeReg(wolfsonRegLoutVol, field); err != nil {
		return err
	}
	if err := w.writeReg(wolfsonRegRoutVol, field); err != nil {
		return err
	}
	w.volume = gain
	return nil
}

// SetMute toggles the DAC soft-mute bit only; the volume registers are
// left untouched, so unmuting restores the exact prior output level.
func (w *WolfsonDriver) SetMute(mute bool) error {
	value := w.cache[wolfsonRegDacCtrl] &^ wolfsonMuteBit
	if mute {
		value |= wolfsonMuteBit
	}
	if err := w.writeReg(wolfsonRegDacCtrl, value); err != nil {
		return err
	}
	w.muted = mute
	return nil
}

// ModelName identifies the driver.
func (w *WolfsonDriver) ModelName() string { return "wolfson-wm8960-class" }

// IsInitialized reports whether Begin has completed.
func (w *WolfsonDriver) IsInitialized() bool { return w.initialized }

// EnableHeadphones implements codec.HeadphoneEnabler.
func (w *WolfsonDriver) EnableHeadphones(enabled bool) error {
	value := w.cache[wolfsonRegPower2]
	const headphoneBits = 0x03 << 5
	if enabled {
		value |= headphoneBits
	} else {
		value &^= headphoneBits
	}
	return w.writeReg(wolfsonRegPower2, value)
}

// EnableSpeakers implements codec.SpeakerEnabler.
func (w *WolfsonDriver) EnableSpeakers(enabled bool) error {
	value := w.cache[wolfsonRegPower3]
	const speakerBits = 0x03 << 4
	if enabled {
		value |= speakerBits
	} else {
		value &^= speakerBits
	}
	return w.writeReg(wolfsonRegPower3, value)
}
