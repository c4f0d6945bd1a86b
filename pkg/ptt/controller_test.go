package ptt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/weareedt/organic/pkg/dialogue"
	"github.com/weareedt/organic/pkg/recorder"
)

type fakeRecorder struct {
	mu       sync.Mutex
	state    recorder.State
	startErr error
	starts   int
	stops    int
	aborts   int
	retries  int
}

func (f *fakeRecorder) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.state = recorder.StateRecording
	return nil
}

func (f *fakeRecorder) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.state = recorder.StateIdle
	return nil
}

func (f *fakeRecorder) VisibilityLost() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts++
	f.state = recorder.StateIdle
}

func (f *fakeRecorder) RetryDevice() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries++
}

func (f *fakeRecorder) State() recorder.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeRecorder) setState(s recorder.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

type fakeSubmitter struct {
	mu       sync.Mutex
	active   bool
	messages chan string
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{messages: make(chan string, 4)}
}

func (f *fakeSubmitter) Submit(ctx context.Context, message string) (dialogue.Turn, error) {
	f.messages <- message
	return dialogue.Turn{ID: "turn", Message: message}, nil
}

func (f *fakeSubmitter) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeSubmitter) setActive(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = active
}

func (f *fakeSubmitter) waitMessage(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-f.messages:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no turn submitted")
		return ""
	}
}

func TestPressArmsRecorder(t *testing.T) {
	rec := &fakeRecorder{}
	c := NewController(rec, newFakeSubmitter(), nil)

	c.Press(context.Background())
	if rec.starts != 1 {
		t.Errorf("expected one start, got %d", rec.starts)
	}
	if got := c.State(); got != ButtonRecording {
		t.Errorf("expected recording state, got %s", got)
	}
}

func TestPressIgnoredWhileTyping(t *testing.T) {
	rec := &fakeRecorder{}
	c := NewController(rec, newFakeSubmitter(), nil)

	c.SetTyping(true)
	c.Press(context.Background())
	if rec.starts != 0 {
		t.Errorf("press while typing must not arm, got %d starts", rec.starts)
	}
	if got := c.State(); got != ButtonTyping {
		t.Errorf("expected typing state, got %s", got)
	}
}

func TestPressIgnoredWhileLoading(t *testing.T) {
	rec := &fakeRecorder{}
	c := NewController(rec, newFakeSubmitter(), nil)

	c.SetLoading(true)
	c.Press(context.Background())
	if rec.starts != 0 {
		t.Errorf("press while loading must not arm, got %d starts", rec.starts)
	}
	if got := c.State(); got != ButtonProcessing {
		t.Errorf("expected processing state, got %s", got)
	}

	c.SetLoading(false)
	c.Press(context.Background())
	if rec.starts != 1 {
		t.Errorf("expected press to arm after loading cleared, got %d starts", rec.starts)
	}
}

func TestPressIgnoredDuringTurn(t *testing.T) {
	rec := &fakeRecorder{}
	sub := newFakeSubmitter()
	sub.setActive(true)
	c := NewController(rec, sub, nil)

	c.Press(context.Background())
	if rec.starts != 0 {
		t.Errorf("press during turn must not arm, got %d starts", rec.starts)
	}
	if got := c.State(); got != ButtonProcessing {
		t.Errorf("expected processing state, got %s", got)
	}
}

func TestReleaseThenTranscriptSubmits(t *testing.T) {
	rec := &fakeRecorder{}
	sub := newFakeSubmitter()
	c := NewController(rec, sub, nil)

	ctx := context.Background()
	c.Press(ctx)
	c.Release(ctx)
	c.Transcript("apa khabar")

	if got := sub.waitMessage(t); got != "apa khabar" {
		t.Errorf("expected transcript submitted, got %q", got)
	}
}

func TestStaleTranscriptIgnored(t *testing.T) {
	rec := &fakeRecorder{}
	sub := newFakeSubmitter()
	c := NewController(rec, sub, nil)

	c.Transcript("ghost of an old release")

	select {
	case msg := <-sub.messages:
		t.Errorf("stale transcript submitted: %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmptyTranscriptSkipsTurn(t *testing.T) {
	rec := &fakeRecorder{}
	sub := newFakeSubmitter()
	c := NewController(rec, sub, nil)

	ctx := context.Background()
	c.Press(ctx)
	c.Release(ctx)
	c.Transcript("")

	select {
	case msg := <-sub.messages:
		t.Errorf("empty transcript submitted: %q", msg)
	case <-time.After(50 * time.Millisecond):
	}

	// The gesture is fully reset; the next one works.
	c.Press(ctx)
	c.Release(ctx)
	c.Transcript("hello")
	sub.waitMessage(t)
}

func TestTranscriptSubmittedOnce(t *testing.T) {
	rec := &fakeRecorder{}
	sub := newFakeSubmitter()
	c := NewController(rec, sub, nil)

	ctx := context.Background()
	c.Press(ctx)
	c.Release(ctx)
	c.Transcript("hello")
	c.Transcript("hello")

	sub.waitMessage(t)
	select {
	case msg := <-sub.messages:
		t.Errorf("duplicate transcript submitted: %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestShortTapDiscardEndsGesture(t *testing.T) {
	rec := &fakeRecorder{}
	sub := newFakeSubmitter()
	c := NewController(rec, sub, nil)

	ctx := context.Background()
	c.Press(ctx)
	c.Release(ctx)

	// A hold under the minimum is discarded: the recorder goes straight
	// back to idle and no transcript ever arrives for this release.
	c.StateChanged(recorder.StateIdle)

	// A transcript showing up after the discard belongs to no gesture.
	c.Transcript("leftover from nowhere")
	select {
	case msg := <-sub.messages:
		t.Errorf("transcript after discard submitted: %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestVisibilityLostCancelsGesture(t *testing.T) {
	rec := &fakeRecorder{}
	sub := newFakeSubmitter()
	c := NewController(rec, sub, nil)

	ctx := context.Background()
	c.Press(ctx)
	c.VisibilityLost()

	if rec.aborts != 1 {
		t.Errorf("expected recorder abort, got %d", rec.aborts)
	}

	c.Transcript("should be dropped")
	select {
	case msg := <-sub.messages:
		t.Errorf("transcript after abort submitted: %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDeviceErrorSurfacesAndRetries(t *testing.T) {
	rec := &fakeRecorder{startErr: &recorder.DeviceError{Err: errors.New("no mic")}}
	c := NewController(rec, newFakeSubmitter(), nil)

	c.Press(context.Background())
	if c.LastError() == nil {
		t.Error("expected device error recorded")
	}

	c.RetryDevice()
	if c.LastError() != nil {
		t.Error("expected error cleared after retry")
	}
	if rec.retries != 1 {
		t.Errorf("expected one device retry, got %d", rec.retries)
	}
}

func TestStateMapping(t *testing.T) {
	rec := &fakeRecorder{}
	sub := newFakeSubmitter()
	c := NewController(rec, sub, nil)

	if got := c.State(); got != ButtonIdle {
		t.Errorf("expected idle, got %s", got)
	}

	rec.setState(recorder.StateRecording)
	if got := c.State(); got != ButtonRecording {
		t.Errorf("expected recording, got %s", got)
	}

	rec.setState(recorder.StateProcessing)
	if got := c.State(); got != ButtonProcessing {
		t.Errorf("expected processing, got %s", got)
	}

	rec.setState(recorder.StateIdle)
	sub.setActive(true)
	if got := c.State(); got != ButtonProcessing {
		t.Errorf("expected processing during turn, got %s", got)
	}
}
