package messaging

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/FuncStore/FuncBot/internal/models"
)

// MockService implements Service fully in memory for tests. Outbound
// traffic is recorded; inbound messages are injected with InjectResponse.
type MockService struct {
	mu        sync.Mutex
	messages  []string
	documents []string
	receipts  chan models.Receipt
	responses chan models.Response
	nextID    int
}

// NewMockService creates a mock transport.
func NewMockService() *MockService {
	return &MockService{
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
}

func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	trimmed := strings.TrimSpace(recipient)
	if trimmed == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	return trimmed, nil
}

func (m *MockService) SendMessage(ctx context.Context, to, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, fmt.Sprintf("%s: %s", to, body))
	m.nextID++
	return fmt.Sprintf("msg-%d", m.nextID), nil
}

func (m *MockService) EditMessage(ctx context.Context, to, messageID, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, fmt.Sprintf("%s: edit %s: %s", to, messageID, body))
	return nil
}

func (m *MockService) SendDocument(ctx context.Context, to, path, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = append(m.documents, fmt.Sprintf("%s: %s", to, path))
	return nil
}

func (m *MockService) Start(ctx context.Context) error { return nil }

func (m *MockService) Stop() error {
	close(m.receipts)
	close(m.responses)
	return nil
}

func (m *MockService) Receipts() <-chan models.Receipt   { return m.receipts }
func (m *MockService) Responses() <-chan models.Response { return m.responses }

// InjectResponse simulates an inbound message.
func (m *MockService) InjectResponse(response models.Response) {
	m.responses <- response
}

// Messages returns a copy of the recorded outbound traffic.
func (m *MockService) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.messages))
	copy(out, m.messages)
	return out
}

// Documents returns a copy of the recorded document deliveries.
func (m *MockService) Documents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.documents))
	copy(out, m.documents)
	return out
}
