package relay

import (
	"context"
	"sync"
)

// Mock is an in-memory Service for testing. Responses and errors are
// set per method; calls are recorded for assertions.
type Mock struct {
	mu sync.Mutex

	TranscribeFunc func(ctx context.Context, audio []byte) (string, error)
	ForwardFunc    func(ctx context.Context, message string) (string, error)
	SynthesizeFunc func(ctx context.Context, text string) ([]byte, error)

	transcribeCalls [][]byte
	forwardCalls    []string
	synthesizeCalls []string
}

// NewMock creates a mock relay service with empty defaults.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Transcribe(ctx context.Context, audio []byte) (string, error) {
	m.mu.Lock()
	m.transcribeCalls = append(m.transcribeCalls, audio)
	fn := m.TranscribeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, audio)
	}
	return "", nil
}

func (m *Mock) ForwardMessage(ctx context.Context, message string) (string, error) {
	m.mu.Lock()
	m.forwardCalls = append(m.forwardCalls, message)
	fn := m.ForwardFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, message)
	}
	return "", nil
}

func (m *Mock) Synthesize(ctx context.Context, text string) ([]byte, error) {
	m.mu.Lock()
	m.synthesizeCalls = append(m.synthesizeCalls, text)
	fn := m.SynthesizeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return nil, nil
}

// TranscribeCalls returns the audio payloads passed to Transcribe.
func (m *Mock) TranscribeCalls() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.transcribeCalls))
	copy(out, m.transcribeCalls)
	return out
}

// ForwardCalls returns the messages passed to ForwardMessage.
func (m *Mock) ForwardCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.forwardCalls))
	copy(out, m.forwardCalls)
	return out
}

// SynthesizeCalls returns the texts passed to Synthesize.
func (m *Mock) SynthesizeCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.synthesizeCalls))
	copy(out, m.synthesizeCalls)
	return out
}

var _ Service = (*Mock)(nil)
