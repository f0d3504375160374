package notify

import (
	"context"
	"sync"

	"github.com/okian/rehearsal/internal/domain/model"
)

// FakePublisher records published updates for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	updates  []model.RankingUpdated
	payloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the update.
func (f *FakePublisher) Publish(_ context.Context, update model.RankingUpdated) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(update)
	if err != nil {
		return err
	}
	f.updates = append(f.updates, update)
	f.payloads = append(f.payloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Updates returns a copy of everything published so far.
func (f *FakePublisher) Updates() []model.RankingUpdated {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.RankingUpdated(nil), f.updates...)
}

// Payloads returns the encoded payloads in publish order.
func (f *FakePublisher) Payloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.payloads...)
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
