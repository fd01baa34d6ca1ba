package messaging

import (
	"context"
	"sync"

	"github.com/BTreeMap/FlightDesk/internal/models"
)

// SentMessage records one outgoing text message.
type SentMessage struct {
	To   string
	Body string
}

// SentImage records one outgoing image message.
type SentImage struct {
	To      string
	Caption string
	Image   []byte
}

// MockService is an in-memory Service implementation for tests.
type MockService struct {
	mu        sync.Mutex
	Messages  []SentMessage
	Images    []SentImage
	Profiles  map[string]string
	SendErr   error
	responses chan models.Response
}

// NewMockService creates a mock transport.
func NewMockService() *MockService {
	return &MockService{
		Profiles:  make(map[string]string),
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
}

func (m *MockService) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Messages = append(m.Messages, SentMessage{To: to, Body: body})
	return nil
}

func (m *MockService) SendImage(ctx context.Context, to string, caption string, image []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Images = append(m.Images, SentImage{To: to, Caption: caption, Image: image})
	return nil
}

func (m *MockService) Profile(ctx context.Context, userID string) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.Profiles[userID]
	if !ok {
		return nil, nil
	}
	return &models.UserProfile{UserID: userID, DisplayName: name}, nil
}

func (m *MockService) Start(ctx context.Context) error { return nil }

func (m *MockService) Stop() error { return nil }

func (m *MockService) Responses() <-chan models.Response { return m.responses }

// Inject delivers a response as if the user had sent it.
func (m *MockService) Inject(resp models.Response) {
	m.responses <- resp
}

// LastMessage returns the most recent sent message, or nil.
func (m *MockService) LastMessage() *SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Messages) == 0 {
		return nil
	}
	msg := m.Messages[len(m.Messages)-1]
	return &msg
}
