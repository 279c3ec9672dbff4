package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/benmeehan/whoo-agent/pkg/location"
	"github.com/benmeehan/whoo-agent/pkg/power"
)

// MockProvider is a mock implementation of location.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) GetLocation(ctx context.Context) (location.Location, error) {
	args := m.Called(ctx)
	return args.Get(0).(location.Location), args.Error(1)
}

func (m *MockProvider) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockBatteryReader is a mock implementation of power.Reader
type MockBatteryReader struct {
	mock.Mock
}

func (m *MockBatteryReader) Read() (power.Status, error) {
	args := m.Called()
	return args.Get(0).(power.Status), args.Error(1)
}
