// Package config provides the configuration schema and loader for the
// voxengine pipeline.
package config

import "log/slog"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog converts l to a slog.Level. Empty defaults to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure for voxengine. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Live   LiveConfig   `yaml:"live"`
	TTS    TTSConfig    `yaml:"tts"`
	Clips  ClipsConfig  `yaml:"clips"`
	Server ServerConfig `yaml:"server"`
}

// EngineConfig holds the audio pipeline parameters.
type EngineConfig struct {
	// CaptureRate is the microphone sample rate in Hz. Default 16000.
	CaptureRate int `yaml:"capture_rate"`

	// PlaybackRate is the playback sample rate in Hz. Default 24000.
	PlaybackRate int `yaml:"playback_rate"`

	// FFTSize is the spectral analysis window length in samples. Must be a
	// power of two. Default 2048.
	FFTSize int `yaml:"fft_size"`
}

// LiveConfig configures the bidirectional live-audio endpoint.
type LiveConfig struct {
	// APIKey is the authentication key for the live endpoint.
	APIKey string `yaml:"api_key"`

	// Model selects the live model. Empty uses the provider default.
	Model string `yaml:"model"`

	// Voice selects the prebuilt voice for synthesized responses.
	Voice string `yaml:"voice"`

	// Instructions is the system instruction for the conversation.
	Instructions string `yaml:"instructions"`

	// BaseURL overrides the WebSocket endpoint. Leave empty for the default.
	BaseURL string `yaml:"base_url"`
}

// TTSConfig configures the one-shot synthesis endpoint backing the clip
// cache. An empty APIKey falls back to the live endpoint's key.
type TTSConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Voice   string `yaml:"voice"`
	BaseURL string `yaml:"base_url"`
}

// ClipsConfig declares the clip vocabulary preloaded at startup.
type ClipsConfig struct {
	// Preload lists the exact texts synthesized ahead of time, in order.
	Preload []string `yaml:"preload"`
}

// ServerConfig holds logging and metrics settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address the /metrics endpoint listens on
	// (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Engine.CaptureRate == 0 {
		c.Engine.CaptureRate = 16000
	}
	if c.Engine.PlaybackRate == 0 {
		c.Engine.PlaybackRate = 24000
	}
	if c.Engine.FFTSize == 0 {
		c.Engine.FFTSize = 2048
	}
	if c.TTS.APIKey == "" {
		c.TTS.APIKey = c.Live.APIKey
	}
	if c.TTS.Voice == "" {
		c.TTS.Voice = c.Live.Voice
	}
}
