package mocks

import "github.com/stretchr/testify/mock"

// MockPublisher is a mock implementation of the JSONPublisher interface
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishJSON(topic string, qos byte, retained bool, v any) error {
	args := m.Called(topic, qos, retained, v)
	return args.Error(0)
}
