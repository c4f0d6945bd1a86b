package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource creates a new audio source with the given configuration.
// BackendAuto selects ffmpeg.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch resolve(cfg.Backend) {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendFFmpeg:
		return NewFFmpegSource(cfg, logger), nil
	default:
		return nil, fmt.Errorf("audioio: unsupported backend: %s", cfg.Backend)
	}
}

// NewSink creates a new audio sink with the given configuration.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch resolve(cfg.Backend) {
	case BackendMock:
		return NewMockSink(cfg, logger), nil
	case BackendFFmpeg:
		return NewFFmpegSink(cfg, logger), nil
	default:
		return nil, fmt.Errorf("audioio: unsupported backend: %s", cfg.Backend)
	}
}

func resolve(b Backend) Backend {
	if b == BackendAuto || b == "" {
		return BackendFFmpeg
	}
	return b
}
