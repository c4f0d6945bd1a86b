// Package config loads application configuration from the environment.
// A .env file in the working directory is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for tunables that were empirically chosen in the original
// front-end and are kept configurable rather than hard-coded.
const (
	DefaultRelayBaseURL     = "http://localhost:3001"
	DefaultSessionID        = "123456789"
	DefaultMinHold          = 500 * time.Millisecond
	DefaultFallbackCharRate = 50 * time.Millisecond
	DefaultAnalysisTick     = 16 * time.Millisecond
	DefaultCaptureRate      = 16000
	DefaultListenAddr       = ":3000"
)

// DefaultBannedPhrases are known failure strings returned by the upstream
// speech model; transcripts matching any of them are discarded.
var DefaultBannedPhrases = []string{
	"Terima kasih kerana menonton",
	"saya akan mencuba untuk melakukan ini",
	"Fuck",
	"Saya akan membunuh anda",
}

// Config holds all runtime configuration for the voice pipeline.
type Config struct {
	// Relay service
	RelayBaseURL string
	SessionID    string
	ASRModel     string
	ASRLanguage  string

	// Recording
	CaptureRate   int
	CaptureDevice string
	AudioBackend  string
	MinHold       time.Duration
	BannedPhrases []string

	// Playback
	Volume       float64
	AnalysisTick time.Duration

	// Reveal
	FallbackCharInterval time.Duration

	// Surface
	ListenAddr string
	StaticDir  string
	LogLevel   string
}

// Load reads configuration from the environment, honoring a .env file
// if one exists in the working directory.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		RelayBaseURL:         envStr("ORGANIC_RELAY_URL", DefaultRelayBaseURL),
		SessionID:            envStr("ORGANIC_SESSION_ID", DefaultSessionID),
		ASRModel:             envStr("ORGANIC_ASR_MODEL", "base"),
		ASRLanguage:          envStr("ORGANIC_ASR_LANGUAGE", "ms"),
		CaptureRate:          envInt("ORGANIC_CAPTURE_RATE", DefaultCaptureRate),
		CaptureDevice:        envStr("ORGANIC_CAPTURE_DEVICE", ""),
		AudioBackend:         envStr("ORGANIC_AUDIO_BACKEND", "auto"),
		MinHold:              envMillis("ORGANIC_MIN_HOLD_MS", DefaultMinHold),
		BannedPhrases:        envList("ORGANIC_BANNED_PHRASES", DefaultBannedPhrases),
		Volume:               envFloat("ORGANIC_VOLUME", 1.0),
		AnalysisTick:         envMillis("ORGANIC_ANALYSIS_TICK_MS", DefaultAnalysisTick),
		FallbackCharInterval: envMillis("ORGANIC_FALLBACK_CHAR_MS", DefaultFallbackCharRate),
		ListenAddr:           envStr("ORGANIC_LISTEN_ADDR", DefaultListenAddr),
		StaticDir:            envStr("ORGANIC_STATIC_DIR", "./web"),
		LogLevel:             envStr("ORGANIC_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.RelayBaseURL == "" {
		return fmt.Errorf("config: relay base URL required")
	}
	if c.CaptureRate <= 0 {
		return fmt.Errorf("config: capture rate must be positive, got %d", c.CaptureRate)
	}
	if c.Volume < 0 {
		return fmt.Errorf("config: volume must not be negative, got %v", c.Volume)
	}
	if c.MinHold < 0 {
		return fmt.Errorf("config: min hold must not be negative, got %v", c.MinHold)
	}
	if c.FallbackCharInterval <= 0 {
		return fmt.Errorf("config: fallback char interval must be positive, got %v", c.FallbackCharInterval)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envMillis(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
