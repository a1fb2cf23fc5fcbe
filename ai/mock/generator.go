package mock

import (
	"context"
	"strings"

	"github.com/poiesic/docquery/ai"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// HealthyFunc is called by Healthy if set.
	// If nil, the default behavior reports the backend as healthy.
	HealthyFunc func(ctx context.Context) error

	// GenerateStreamFunc is called by GenerateStream if set.
	// If nil, uses default canned-response behavior.
	GenerateStreamFunc func(ctx context.Context, prompt string, fn ai.StreamFunc) error

	// Response is the canned completion used by the default behavior.
	// It is streamed one whitespace-delimited token at a time.
	Response string

	healthyCalls  int
	generateCalls int
}

// NewMockGenerator creates a mock generator with a default canned response.
// Note: Returns concrete type to allow test assertions via GetMockGenerator().
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		Response: "This is a mock answer.",
	}
}

// Healthy reports the configured health state.
func (m *MockGenerator) Healthy(ctx context.Context) error {
	m.healthyCalls++

	if m.HealthyFunc != nil {
		return m.HealthyFunc(ctx)
	}
	return nil
}

// GenerateStream streams the canned response token by token.
func (m *MockGenerator) GenerateStream(ctx context.Context, prompt string, fn ai.StreamFunc) error {
	m.generateCalls++

	if m.GenerateStreamFunc != nil {
		return m.GenerateStreamFunc(ctx, prompt, fn)
	}

	for i, token := range strings.Fields(m.Response) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			token = " " + token
		}
		if err := fn(token); err != nil {
			return err
		}
	}
	return nil
}

// HealthyCalls returns the number of times Healthy was called.
func (m *MockGenerator) HealthyCalls() int {
	return m.healthyCalls
}

// GenerateCalls returns the number of times GenerateStream was called.
func (m *MockGenerator) GenerateCalls() int {
	return m.generateCalls
}

// Reset clears call counts and injected behavior.
func (m *MockGenerator) Reset() {
	m.healthyCalls = 0
	m.generateCalls = 0
	m.HealthyFunc = nil
	m.GenerateStreamFunc = nil
}
