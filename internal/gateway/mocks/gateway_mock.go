package mocks

import (
	"context"
	"fmt"
	"sync"
)

// MockGateway is a recording implementation of gateway.ChatGateway for tests.
// Message IDs are deterministic ("msg-1", "msg-2", ...) in call order.
type MockGateway struct {
	mu  sync.Mutex
	seq int

	Posts   []Post
	Edits   []Edit
	Directs []Direct

	PostErr   error
	EditErr   error
	DirectErr error
}

type Post struct {
	ChannelID string
	Content   string
	MessageID string
}

type Edit struct {
	MessageID string
	Content   string
}

type Direct struct {
	UserID    string
	Content   string
	MessageID string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) nextID() string {
	m.seq++
	return fmt.Sprintf("msg-%d", m.seq)
}

func (m *MockGateway) PostToChannel(_ context.Context, channelID, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PostErr != nil {
		return "", m.PostErr
	}
	id := m.nextID()
	m.Posts = append(m.Posts, Post{ChannelID: channelID, Content: content, MessageID: id})
	return id, nil
}

func (m *MockGateway) EditMessage(_ context.Context, messageID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EditErr != nil {
		return m.EditErr
	}
	m.Edits = append(m.Edits, Edit{MessageID: messageID, Content: content})
	return nil
}

func (m *MockGateway) SendDirect(_ context.Context, userID, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DirectErr != nil {
		return "", m.DirectErr
	}
	id := m.nextID()
	m.Directs = append(m.Directs, Direct{UserID: userID, Content: content, MessageID: id})
	return id, nil
}

// LastPost returns the most recent channel post, or nil.
func (m *MockGateway) LastPost() *Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Posts) == 0 {
		return nil
	}
	p := m.Posts[len(m.Posts)-1]
	return &p
}

// LastDirect returns the most recent direct message, or nil.
func (m *MockGateway) LastDirect() *Direct {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Directs) == 0 {
		return nil
	}
	d := m.Directs[len(m.Directs)-1]
	return &d
}
