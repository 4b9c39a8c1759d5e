// Package diagnostics routes errors swallowed by the host facade to a logger.
package diagnostics

import (
	"sync"

	"github.com/rs/zerolog"
)

// ZerologSink implements the DiagnosticSink interface using zerolog
type ZerologSink struct {
	logger zerolog.Logger
}

// NewZerologSink creates a sink writing error events tagged with component
func NewZerologSink(logger zerolog.Logger, component string) *ZerologSink {
	return &ZerologSink{
		logger: logger.With().Str("component", component).Logger(),
	}
}

// LogError writes msg as an error event
func (s *ZerologSink) LogError(msg string) {
	s.logger.Error().Msg(msg)
}

// MemorySink keeps every message, for tests and embedders that surface
// diagnostics themselves.
type MemorySink struct {
	mu       sync.Mutex
	messages []string
}

// NewMemorySink creates an empty in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// LogError records msg
func (s *MemorySink) LogError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// Messages returns the recorded messages in order
func (s *MemorySink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

// Reset forgets recorded messages
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}
