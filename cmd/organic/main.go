// Organic - a push-to-talk voice interface for a Malay-speaking
// conversational assistant, backed by a transcription/LLM/TTS relay.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/weareedt/organic/internal/config"
	"github.com/weareedt/organic/internal/log"
	"github.com/weareedt/organic/pkg/app"
)

func main() {
	cfg, err := parseFlags()
	if err != nil {
		log.Init("info")
		log.Error("configuration error", "err", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	a, err := app.New(*cfg)
	if err != nil {
		log.Error("initialization failed", "err", err)
		os.Exit(1)
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		log.Error("runtime error", "err", err)
		os.Exit(1)
	}
}

// parseFlags loads the environment configuration and applies command
// line overrides.
func parseFlags() (*config.Config, error) {
	relayURL := flag.String("relay", "", "Relay base URL (overrides ORGANIC_RELAY_URL)")
	addr := flag.String("addr", "", "Listen address (overrides ORGANIC_LISTEN_ADDR)")
	device := flag.String("device", "", "Capture device (overrides ORGANIC_CAPTURE_DEVICE)")
	backend := flag.String("backend", "", "Audio backend: auto, ffmpeg, mock")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if *relayURL != "" {
		cfg.RelayBaseURL = *relayURL
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *device != "" {
		cfg.CaptureDevice = *device
	}
	if *backend != "" {
		cfg.AudioBackend = *backend
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}
