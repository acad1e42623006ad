package mocks

import (
	"context"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/stretchr/testify/mock"
)

// MockEmailProvider is a mock implementation of protocol.EmailProvider interface.
type MockEmailProvider struct {
	mock.Mock
}

func (m *MockEmailProvider) CheckForNewEmails(ctx context.Context, userID string, condition protocol.EmailCondition, limit int) ([]models.Email, error) {
	args := m.Called(ctx, userID, condition, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.Email), args.Error(1)
}

// MockChatProvider is a mock implementation of protocol.ChatProvider interface.
type MockChatProvider struct {
	mock.Mock
}

func (m *MockChatProvider) ListMessages(ctx context.Context, userID string, condition protocol.ChatCondition, limit int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, userID, condition, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.ChatMessage), args.Error(1)
}

// MockChatSender is a mock implementation of protocol.ChatSender interface.
type MockChatSender struct {
	mock.Mock
}

func (m *MockChatSender) SendChatMessage(ctx context.Context, userID, chatID, text string) (string, error) {
	args := m.Called(ctx, userID, chatID, text)

	return args.String(0), args.Error(1)
}

// MockEmailSender is a mock implementation of protocol.EmailSender interface.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, userID string, email protocol.OutgoingEmail) (string, error) {
	args := m.Called(ctx, userID, email)

	return args.String(0), args.Error(1)
}

func (m *MockEmailSender) ReplyToEmail(ctx context.Context, userID, emailID, body string) (string, error) {
	args := m.Called(ctx, userID, emailID, body)

	return args.String(0), args.Error(1)
}

// MockNotifier is a mock implementation of protocol.Notifier interface.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, userID, title, body string) error {
	args := m.Called(ctx, userID, title, body)

	return args.Error(0)
}

// MockInferenceBackend is a mock implementation of protocol.InferenceBackend interface.
type MockInferenceBackend struct {
	mock.Mock
}

func (m *MockInferenceBackend) Available(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockInferenceBackend) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)

	return args.String(0), args.Error(1)
}

// MockRegionMonitor is a mock implementation of protocol.RegionMonitor interface.
type MockRegionMonitor struct {
	mock.Mock
}

func (m *MockRegionMonitor) Register(ctx context.Context, spec protocol.RegionSpec) error {
	args := m.Called(ctx, spec)

	return args.Error(0)
}

func (m *MockRegionMonitor) Unregister(ctx context.Context, requestIDs []string) error {
	args := m.Called(ctx, requestIDs)

	return args.Error(0)
}
