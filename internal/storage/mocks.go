package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockRedisClient is a mock implementation of RedisClient for testing. It
// records published stream messages and replays them to consumers.
type MockRedisClient struct {
	mu         sync.Mutex
	StreamData []StreamMessage
	Acked      []string
	PublishErr error
	ConsumeErr error
	nextID     int
}

// NewMockRedisClient creates a new mock Redis client.
func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{}
}

func (m *MockRedisClient) PublishToStream(ctx context.Context, stream string, key string, value interface{}) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.StreamData = append(m.StreamData, StreamMessage{
		ID:     fmt.Sprintf("%d-0", m.nextID),
		Stream: stream,
		Values: map[string]interface{}{key: string(jsonData)},
	})
	return nil
}

func (m *MockRedisClient) ConsumeFromStream(ctx context.Context, stream string, group string, consumer string) (<-chan StreamMessage, error) {
	if m.ConsumeErr != nil {
		return nil, m.ConsumeErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan StreamMessage, len(m.StreamData))
	for _, msg := range m.StreamData {
		if msg.Stream == stream {
			ch <- msg
		}
	}
	close(ch)
	return ch, nil
}

func (m *MockRedisClient) AcknowledgeMessage(ctx context.Context, stream string, group string, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Acked = append(m.Acked, id)
	return nil
}

func (m *MockRedisClient) Close() error {
	return nil
}

// AckedIDs returns a copy of the acknowledged message ids.
func (m *MockRedisClient) AckedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Acked))
	copy(out, m.Acked)
	return out
}
