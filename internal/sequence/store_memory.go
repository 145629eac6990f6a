package sequence

import (
	"context"
	"sync/atomic"
)

// InMemoryIssuer issues positions from a process-local counter. Unit-test
// substitute for the Postgres issuer.
type InMemoryIssuer struct {
	counter atomic.Int64
}

func NewInMemoryIssuer() *InMemoryIssuer {
	return &InMemoryIssuer{}
}

func (s *InMemoryIssuer) Next(_ context.Context) (int64, error) {
	return s.counter.Add(1), nil
}

func (s *InMemoryIssuer) Current(_ context.Context) (int64, error) {
	return s.counter.Load(), nil
}
