package did

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gezhip02/chat-english/internal/render"
)

// MockVendor completes every talk after a fixed number of status polls. It is
// used in mock mode and when no D-ID key is configured.
type MockVendor struct {
	pollsUntilDone int

	mu    sync.Mutex
	polls map[string]int
}

var _ render.Vendor = (*MockVendor)(nil)

// NewMockVendor creates a mock renderer.
func NewMockVendor(pollsUntilDone int) *MockVendor {
	if pollsUntilDone < 1 {
		pollsUntilDone = 1
	}
	return &MockVendor{pollsUntilDone: pollsUntilDone, polls: make(map[string]int)}
}

func (m *MockVendor) CreateTalk(ctx context.Context, text, sourceURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := "tlk_mock_" + uuid.New().String()[:8]
	m.mu.Lock()
	m.polls[id] = 0
	m.mu.Unlock()
	return id, nil
}

func (m *MockVendor) GetTalk(ctx context.Context, id string) (*render.TalkStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.polls[id]
	if !ok {
		return nil, fmt.Errorf("talk %s not found", id)
	}
	n++
	m.polls[id] = n
	if n >= m.pollsUntilDone {
		delete(m.polls, id)
		return &render.TalkStatus{Status: render.StatusDone, ResultURL: "mock://talks/" + id + ".mp4"}, nil
	}
	return &render.TalkStatus{Status: "started"}, nil
}
