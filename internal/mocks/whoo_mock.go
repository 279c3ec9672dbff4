package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/benmeehan/whoo-agent/pkg/whoo"
)

// MockWhooAPI mocks the service calls the agent makes.
type MockWhooAPI struct {
	mock.Mock
}

func (m *MockWhooAPI) Online(ctx context.Context) (whoo.Record, error) {
	args := m.Called(ctx)
	record, _ := args.Get(0).(whoo.Record)
	return record, args.Error(1)
}

func (m *MockWhooAPI) Offline(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockWhooAPI) UpdateLocation(ctx context.Context, update whoo.LocationUpdate) (whoo.Record, error) {
	args := m.Called(ctx, update)
	record, _ := args.Get(0).(whoo.Record)
	return record, args.Error(1)
}

func (m *MockWhooAPI) GetLocations(ctx context.Context, userID int64) (*whoo.Locations, error) {
	args := m.Called(ctx, userID)
	locations, _ := args.Get(0).(*whoo.Locations)
	return locations, args.Error(1)
}
