package mocks

import (
	"fmt"

	"github.com/mystari/mystari-api/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing
type MockRandom struct {
	// TokenResults is a queue of results to return from Token
	TokenResults []string
	tokenIndex   int
	calls        int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Token returns the next queued result. Once the queue is exhausted it
// returns a distinct deterministic value per call.
func (r *MockRandom) Token(n int) string {
	r.calls++
	if r.tokenIndex >= len(r.TokenResults) {
		return fmt.Sprintf("mock-token-%d", r.calls)
	}
	result := r.TokenResults[r.tokenIndex]
	r.tokenIndex++
	return result
}

// QueueToken adds values to the Token result queue
func (r *MockRandom) QueueToken(values ...string) {
	r.TokenResults = append(r.TokenResults, values...)
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.TokenResults = nil
	r.tokenIndex = 0
	r.calls = 0
}
