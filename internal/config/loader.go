package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// knownVoices lists the prebuilt voice names the live endpoint accepts. Used
// by [Validate] to warn about likely typos.
var knownVoices = []string{"Aoede", "Charon", "Fenrir", "Kore", "Puck"}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Engine.CaptureRate <= 0 {
		errs = append(errs, fmt.Errorf("engine.capture_rate %d must be positive", cfg.Engine.CaptureRate))
	}
	if cfg.Engine.PlaybackRate <= 0 {
		errs = append(errs, fmt.Errorf("engine.playback_rate %d must be positive", cfg.Engine.PlaybackRate))
	}
	if cfg.Engine.FFTSize > 0 && cfg.Engine.FFTSize&(cfg.Engine.FFTSize-1) != 0 {
		errs = append(errs, fmt.Errorf("engine.fft_size %d must be a power of two", cfg.Engine.FFTSize))
	}

	if cfg.Live.APIKey == "" {
		errs = append(errs, errors.New("live.api_key is required"))
	}

	validateVoice("live.voice", cfg.Live.Voice)
	validateVoice("tts.voice", cfg.TTS.Voice)

	seen := make(map[string]int, len(cfg.Clips.Preload))
	for i, key := range cfg.Clips.Preload {
		if key == "" {
			errs = append(errs, fmt.Errorf("clips.preload[%d] must not be empty", i))
			continue
		}
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("clips.preload[%d] %q is a duplicate of clips.preload[%d]", i, key, prev))
		}
		seen[key] = i
	}

	return errors.Join(errs...)
}

// validateVoice logs a warning if the voice is non-empty and not a known
// prebuilt voice.
func validateVoice(field, voice string) {
	if voice == "" {
		return
	}
	for _, v := range knownVoices {
		if v == voice {
			return
		}
	}
	slog.Warn("unknown voice name — may be a typo or a newly released voice",
		"field", field,
		"voice", voice,
		"known", knownVoices,
	)
}
