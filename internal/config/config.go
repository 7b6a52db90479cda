// Package config is the single source of truth for the mixing engine's
// tunables. Values have sensible defaults and can be overridden by
// environment variables; nothing here reads a file — loading a YAML/forms
// configuration for the wider effects application is a collaborator
// outside this module's scope.
package config

import (
	"os"
	"strconv"
)

// =============================================================================
// MIXER CONFIGURATION
// =============================================================================

// MixerConfig holds the engine's real-time tunables.
type MixerConfig struct {
	SampleRate     int     // Hz, shared by every channel's output
	BlockSize      int     // stereo frames produced per tick
	NumChannels    int     // number of mix slots (Channel count N)
	QueueCapacity  int     // per-channel FIFO capacity (Q)
	RingCapacity   int     // command ring capacity (C)
	MasterVolume   float64 // initial master gain, 0.0-1.0
	FadeDurationMs int     // fixed stop-fade duration
}

// DefaultMixer returns the default mixer configuration.
func DefaultMixer() MixerConfig {
	return MixerConfig{
		SampleRate:     44100,
		BlockSize:      512,
		NumChannels:    8,
		QueueCapacity:  4,
		RingCapacity:   16,
		MasterVolume:   1.0,
		FadeDurationMs: 50,
	}
}

// MixerFromEnv returns the mixer configuration with environment overrides.
func MixerFromEnv() MixerConfig {
	cfg := DefaultMixer()

	if v := getEnvInt("MIXER_SAMPLE_RATE", 0); v > 0 {
		cfg.SampleRate = v
	}
	if v := getEnvInt("MIXER_BLOCK_SIZE", 0); v > 0 {
		cfg.BlockSize = v
	}
	if v := getEnvInt("MIXER_NUM_CHANNELS", 0); v > 0 {
		cfg.NumChannels = v
	}
	if v := getEnvInt("MIXER_QUEUE_CAPACITY", 0); v > 0 {
		cfg.QueueCapacity = v
	}
	if v := getEnvInt("MIXER_RING_CAPACITY", 0); v > 0 {
		cfg.RingCapacity = v
	}
	if v := getEnvFloat("MIXER_MASTER_VOLUME", -1); v >= 0 {
		cfg.MasterVolume = v
	}

	return cfg
}

// =============================================================================
// TELEMETRY CONFIGURATION
// =============================================================================

// TelemetryConfig configures the read-only debug/metrics HTTP surface.
type TelemetryConfig struct {
	Enabled    bool
	ListenAddr string // MUST stay loopback-bound in production
}

// DefaultTelemetry returns safe defaults.
func DefaultTelemetry() TelemetryConfig {
	return TelemetryConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:9090",
	}
}

// TelemetryFromEnv returns telemetry configuration with environment overrides.
func TelemetryFromEnv() TelemetryConfig {
	cfg := DefaultTelemetry()

	if os.Getenv("TELEMETRY_ENABLED") == "false" {
		cfg.Enabled = false
	}
	if addr := os.Getenv("TELEMETRY_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete configuration for the demo binary.
type AppConfig struct {
	Mixer     MixerConfig
	Telemetry TelemetryConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Mixer:     MixerFromEnv(),
		Telemetry: TelemetryFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
