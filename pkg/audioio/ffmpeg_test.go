package audioio

import (
	"context"
	"os/exec"
	"testing"
	"time"
)

// Runs the capture loop against a command that floods stdout, so Stop
// always lands while a read is completing.
func TestFFmpegSourceStopWhileStreaming(t *testing.T) {
	if _, err := exec.LookPath("yes"); err != nil {
		t.Skip("yes not available")
	}

	cfg := DefaultConfig()
	cfg.Backend = BackendFFmpeg

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		src := NewFFmpegSource(cfg, nil)
		src.command = "yes"

		if err := src.Start(ctx); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		select {
		case <-src.Stream():
		case <-time.After(2 * time.Second):
			t.Fatalf("no chunk before stop on cycle %d", i)
		}
		if err := src.Stop(); err != nil {
			t.Fatalf("stop %d: %v", i, err)
		}

		// The read loop owns the stream channel; after Stop returns it
		// must already be closed.
		deadline := time.After(time.Second)
	drain:
		for {
			select {
			case _, ok := <-src.Stream():
				if !ok {
					break drain
				}
			case <-deadline:
				t.Fatalf("stream not closed after stop on cycle %d", i)
			}
		}
	}
}
