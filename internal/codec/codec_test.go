package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scalefx-mixer/internal/audioerr"
)

func TestWolfsonBeginInitializesAndSetsDefaultVolume(t *testing.T) {
	bus := NewFakeBus()
	d := NewWolfsonDriver(bus, 0x1A)

	require.NoError(t, d.Begin(44100))

	assert.True(t, d.IsInitialized())
	loutVal, ok := bus.ReadRegister(0x1A, wolfsonRegLoutVol)
	require.True(t, ok)
	assert.Equal(t, gainTo7Bit(wolfsonDefaultGain), loutVal)
}

func TestWolfsonMuteUnmutePreservesVolumeRegister(t *testing.T) {
	bus := NewFakeBus()
	d := NewWolfsonDriver(bus, 0x1A)
	require.NoError(t, d.Begin(44100))
	require.NoError(t, d.SetVolume(0.5))

	before, _ := bus.ReadRegister(0x1A, wolfsonRegLoutVol)

	require.NoError(t, d.SetMute(true))
	require.NoError(t, d.SetMute(false))

	after, _ := bus.ReadRegister(0x1A, wolfsonRegLoutVol)
	assert.Equal(t, before, after)
	assert.False(t, d.muted)
}

func TestWolfsonWriteFailureIsCodecControlFault(t *testing.T) {
	bus := NewFakeBus()
	bus.SetFailWrites(true)
	d := NewWolfsonDriver(bus, 0x1A)

	err := d.Begin(44100)
	require.Error(t, err)
	assert.True(t, audioerr.Is(err, audioerr.CodecControlFault))
	assert.False(t, d.IsInitialized())
}

func TestWolfsonEnableSpeakersAndHeadphonesAreWired(t *testing.T) {
	bus := NewFakeBus()
	d := NewWolfsonDriver(bus, 0x1A)
	require.NoError(t, d.Begin(44100))

	var _ SpeakerEnabler = d
	var _ HeadphoneEnabler = d

	require.NoError(t, d.EnableSpeakers(false))
	require.NoError(t, d.EnableHeadphones(false))
}

func TestTIClassDMuteUnmutePreservesVolume(t *testing.T) {
	bus := NewFakeBus()
	d := NewTIClassDDriver(bus, 0x1B)
	require.NoError(t, d.Begin(48000))
	require.NoError(t, d.SetVolume(0.8))

	before, _ := bus.ReadRegister(0x1B, tiRegVolumeL)
	require.NoError(t, d.SetMute(true))
	require.NoError(t, d.SetMute(false))
	after, _ := bus.ReadRegister(0x1B, tiRegVolumeL)

	assert.Equal(t, before, after)
}

func TestTIClassDShutdownBitTracksEnableSpeakers(t *testing.T) {
	bus := NewFakeBus()
	d := NewTIClassDDriver(bus, 0x1B)
	require.NoError(t, d.Begin(48000))

	require.NoError(t, d.EnableSpeakers(false))
	powerCtrl, _ := bus.ReadRegister(0x1B, tiRegPowerCtrl)
	assert.NotZero(t, powerCtrl&tiShutdownBit)

	require.NoError(t, d.EnableSpeakers(true))
	powerCtrl, _ = bus.ReadRegister(0x1B, tiRegPowerCtrl)
	assert.Zero(t, powerCtrl&tiShutdownBit)
}

func TestSimpleDACHasNoBusButSatisfiesController(t *testing.T) {
	var c Controller = NewSimpleDACDriver()

	require.NoError(t, c.Begin(22050))
	assert.True(t, c.IsInitialized())
	require.NoError(t, c.SetVolume(0.3))
	require.NoError(t, c.SetMute(true))
	require.NoError(t, c.Reset())
	assert.Equal(t, "simple-dac", c.ModelName())
}

func TestAllDriversSatisfyController(t *testing.T) {
	bus := NewFakeBus()
	var drivers = []Controller{
		NewWolfsonDriver(bus, 0x1A),
		NewTIClassDDriver(bus, 0x1B),
		NewSimpleDACDriver(),
	}
	for _, d := range drivers {
		require.NoError(t, d.Begin(44100))
		assert.True(t, d.IsInitialized())
		assert.NotEmpty(t, d.ModelName())
	}
}

func TestGainMappingIsMonotonicAndBounded(t *testing.T) {
	assert.Equal(t, uint8(0), gainTo7Bit(0))
	assert.Equal(t, uint8(127), gainTo7Bit(1))
	assert.Equal(t, uint8(127), gainTo7Bit(2)) // clamps above 1
	assert.Equal(t, uint8(0), gainTo8Bit(-1))  // clamps below 0
	assert.Less(t, gainTo7Bit(0.2), gainTo7Bit(0.8))
}
