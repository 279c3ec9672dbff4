package service_registry

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benmeehan/whoo-agent/internal/mocks"
	"github.com/benmeehan/whoo-agent/internal/services"
	"github.com/benmeehan/whoo-agent/internal/utils"
	"github.com/benmeehan/whoo-agent/pkg/file"
)

type recordingService struct {
	name     string
	startErr error
	stopErr  error
	events   *[]string
}

func (s *recordingService) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	*s.events = append(*s.events, "start "+s.name)
	return nil
}

func (s *recordingService) Stop() error {
	*s.events = append(*s.events, "stop "+s.name)
	return s.stopErr
}

func newTestRegistry() *ServiceRegistry {
	return NewServiceRegistry(new(mocks.MockWhooAPI), new(mocks.MockMQTTClient), file.NewFileService(), zerolog.Nop())
}

func TestServiceRegistry_StartStop_Order(t *testing.T) {
	var events []string
	sr := newTestRegistry()
	sr.RegisterService("a", &recordingService{name: "a", events: &events})
	sr.RegisterService("b", &recordingService{name: "b", events: &events})
	sr.RegisterService("a", &recordingService{name: "duplicate", events: &events})

	require.NoError(t, sr.StartServices())
	require.NoError(t, sr.StopServices())

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, events)
}

func TestServiceRegistry_StartServices_RollsBack(t *testing.T) {
	var events []string
	sr := newTestRegistry()
	sr.RegisterService("a", &recordingService{name: "a", events: &events})
	sr.RegisterService("b", &recordingService{name: "b", events: &events, startErr: errors.New("boom")})
	sr.RegisterService("c", &recordingService{name: "c", events: &events})

	err := sr.StartServices()
	assert.ErrorContains(t, err, "failed to start b: boom")
	assert.Equal(t, []string{"start a", "stop a"}, events)
}

func TestServiceRegistry_StopServices_JoinsErrors(t *testing.T) {
	var events []string
	sr := newTestRegistry()
	sr.RegisterService("a", &recordingService{name: "a", events: &events, stopErr: errors.New("a failed")})
	sr.RegisterService("b", &recordingService{name: "b", events: &events, stopErr: errors.New("b failed")})
	require.NoError(t, sr.StartServices())

	err := sr.StopServices()
	assert.ErrorContains(t, err, "failed to stop a: a failed")
	assert.ErrorContains(t, err, "failed to stop b: b failed")

	// Nothing is left running after a stop.
	assert.NoError(t, sr.StopServices())
}

func enabledConfig() *utils.Config {
	var config utils.Config
	config.Services.Reporter.Enabled = true
	config.Services.Reporter.Provider.Type = utils.ProviderStatic
	config.Services.Reporter.Provider.Latitude = 35.6762
	config.Services.Reporter.Provider.Longitude = 139.6503
	config.Services.Reporter.Battery.Source = utils.BatteryStatic
	config.Services.Reporter.Battery.Level = 80
	config.Services.Relay.Enabled = true
	config.Services.Relay.Topic = "whoo/friends"
	return &config
}

func TestServiceRegistry_RegisterServices(t *testing.T) {
	sr := newTestRegistry()
	require.NoError(t, sr.RegisterServices(enabledConfig()))

	assert.Equal(t, []string{"reporter", "relay"}, sr.services.Keys())
	reporter, _ := sr.services.Get("reporter")
	assert.IsType(t, &services.ReporterService{}, reporter)
	relay, _ := sr.services.Get("relay")
	assert.IsType(t, &services.RelayService{}, relay)
}

func TestServiceRegistry_RegisterServices_Disabled(t *testing.T) {
	config := enabledConfig()
	config.Services.Reporter.Enabled = false
	config.Services.Relay.Enabled = false

	sr := newTestRegistry()
	require.NoError(t, sr.RegisterServices(config))
	assert.Zero(t, sr.services.Len())
}

func TestServiceRegistry_RegisterServices_RelayWithoutMQTT(t *testing.T) {
	config := enabledConfig()
	config.Services.Reporter.Enabled = false

	sr := NewServiceRegistry(new(mocks.MockWhooAPI), nil, file.NewFileService(), zerolog.Nop())
	err := sr.RegisterServices(config)
	assert.ErrorContains(t, err, "relay service requires an MQTT connection")
}

func TestServiceRegistry_RegisterServices_UnknownProvider(t *testing.T) {
	config := enabledConfig()
	config.Services.Reporter.Provider.Type = "carrier-pigeon"

	sr := newTestRegistry()
	err := sr.RegisterServices(config)
	assert.ErrorContains(t, err, `unknown location provider "carrier-pigeon"`)
}
