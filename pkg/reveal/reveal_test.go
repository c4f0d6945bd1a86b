package reveal

import (
	"sync"
	"testing"
	"time"
	"unicode/utf8"
)

func TestCharInterval(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		runes    int
		want     time.Duration
	}{
		{"spread across audio", time.Second, 8, 125 * time.Millisecond},
		{"no audio uses fallback", 0, 8, 50 * time.Millisecond},
		{"empty text clamps to one", 400 * time.Millisecond, 0, 400 * time.Millisecond},
		{"single rune", 300 * time.Millisecond, 1, 300 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := charInterval(tt.duration, tt.runes, 50*time.Millisecond)
			if got != tt.want {
				t.Errorf("charInterval(%v, %d) = %v, want %v", tt.duration, tt.runes, got, tt.want)
			}
		})
	}
}

type updateLog struct {
	mu    sync.Mutex
	snaps []Snapshot
	done  chan struct{}
}

func newUpdateLog() *updateLog {
	return &updateLog{done: make(chan struct{})}
}

func (u *updateLog) record(s Snapshot) {
	u.mu.Lock()
	u.snaps = append(u.snaps, s)
	finished := !s.Typing
	u.mu.Unlock()
	if finished {
		select {
		case <-u.done:
		default:
			close(u.done)
		}
	}
}

func (u *updateLog) wait(t *testing.T) []Snapshot {
	t.Helper()
	select {
	case <-u.done:
	case <-time.After(5 * time.Second):
		t.Fatal("reveal never finished")
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]Snapshot, len(u.snaps))
	copy(out, u.snaps)
	return out
}

func TestRevealIsMonotonic(t *testing.T) {
	log := newUpdateLog()
	s := NewSynchronizer(Config{FallbackCharInterval: time.Millisecond, TrailingDelay: time.Millisecond}, nil)
	s.OnUpdate = log.record

	s.Reveal("hello dunia", 0)
	snaps := log.wait(t)

	prev := -1
	for _, snap := range snaps {
		n := utf8.RuneCountInString(snap.Visible)
		if n < prev {
			t.Fatalf("visible length went backwards: %d after %d", n, prev)
		}
		prev = n
	}

	last := snaps[len(snaps)-1]
	if last.Visible != "hello dunia" {
		t.Errorf("expected full text at end, got %q", last.Visible)
	}
	if last.Typing {
		t.Error("expected typing false at end")
	}
}

func TestRevealHandlesMultibyteRunes(t *testing.T) {
	log := newUpdateLog()
	s := NewSynchronizer(Config{FallbackCharInterval: time.Millisecond, TrailingDelay: time.Millisecond}, nil)
	s.OnUpdate = log.record

	s.Reveal("héllo wörld", 0)
	snaps := log.wait(t)

	for _, snap := range snaps {
		if !utf8.ValidString(snap.Visible) {
			t.Fatalf("visible prefix split a rune: %q", snap.Visible)
		}
	}
}

func TestNewRevealSupersedes(t *testing.T) {
	log := newUpdateLog()
	s := NewSynchronizer(Config{FallbackCharInterval: 30 * time.Millisecond, TrailingDelay: time.Millisecond}, nil)
	s.OnUpdate = log.record

	s.Reveal("the first long reply text", 0)
	time.Sleep(50 * time.Millisecond)
	s.Reveal("second", 0)
	snaps := log.wait(t)

	// Once the new reveal starts, nothing from the old one may appear.
	seenSecond := false
	for _, snap := range snaps {
		if snap.Full == "second" {
			seenSecond = true
		} else if seenSecond {
			t.Fatalf("snapshot from superseded reveal leaked: %+v", snap)
		}
	}
	last := snaps[len(snaps)-1]
	if last.Visible != "second" {
		t.Errorf("expected %q revealed, got %q", "second", last.Visible)
	}
}

func TestTrailingDelay(t *testing.T) {
	s := NewSynchronizer(Config{FallbackCharInterval: time.Millisecond, TrailingDelay: 150 * time.Millisecond}, nil)

	fullAt := make(chan time.Time, 1)
	doneAt := make(chan time.Time, 1)
	s.OnUpdate = func(snap Snapshot) {
		if snap.Visible == snap.Full && snap.Typing {
			select {
			case fullAt <- time.Now():
			default:
			}
		}
		if !snap.Typing {
			select {
			case doneAt <- time.Now():
			default:
			}
		}
	}

	s.Reveal("hi", 0)

	var full, done time.Time
	select {
	case full = <-fullAt:
	case <-time.After(2 * time.Second):
		t.Fatal("text never fully revealed")
	}
	select {
	case done = <-doneAt:
	case <-time.After(2 * time.Second):
		t.Fatal("typing never ended")
	}

	if gap := done.Sub(full); gap < 100*time.Millisecond {
		t.Errorf("typing ended %v after full reveal, expected at least 100ms", gap)
	}
}

func TestCancelFreezesPrefix(t *testing.T) {
	s := NewSynchronizer(Config{FallbackCharInterval: 10 * time.Millisecond, TrailingDelay: time.Millisecond}, nil)

	s.Reveal("a long sentence to cancel midway", 0)
	time.Sleep(50 * time.Millisecond)
	s.Cancel()

	snap := s.Snapshot()
	if snap.Typing {
		t.Error("expected typing false after cancel")
	}
	frozen := snap.Visible
	if frozen == snap.Full {
		t.Skip("reveal completed before cancel")
	}

	time.Sleep(50 * time.Millisecond)
	if got := s.Snapshot().Visible; got != frozen {
		t.Errorf("prefix advanced after cancel: %q then %q", frozen, got)
	}
}
