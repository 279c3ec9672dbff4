package service_registry

import (
	"errors"
	"fmt"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/rs/zerolog"

	"github.com/benmeehan/whoo-agent/internal/services"
	"github.com/benmeehan/whoo-agent/internal/utils"
	"github.com/benmeehan/whoo-agent/pkg/file"
	"github.com/benmeehan/whoo-agent/pkg/location"
	"github.com/benmeehan/whoo-agent/pkg/mqtt"
	"github.com/benmeehan/whoo-agent/pkg/power"
	"github.com/benmeehan/whoo-agent/pkg/whoo"
)

// Service is the interface for all plug-in services
type Service interface {
	Start() error
	Stop() error
}

// WhooAPI is what the registered services need from the whoo client.
type WhooAPI interface {
	services.LocationReporter
	services.LocationSource
}

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services   *orderedmap.OrderedMap[string, Service] // Registered services in registration order
	started    []string                                // Names of running services in start order
	api        WhooAPI
	mqttClient mqtt.MQTTClient
	fileClient file.FileOperations
	Logger     zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
// mqttClient may be nil when no MQTT service is enabled.
func NewServiceRegistry(api WhooAPI, mqttClient mqtt.MQTTClient, fileClient file.FileOperations, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   orderedmap.NewOrderedMap[string, Service](),
		api:        api,
		mqttClient: mqttClient,
		fileClient: fileClient,
		Logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services.Get(name); exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services.Set(name, svc)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	for _, name := range sr.services.Keys() {
		svc, _ := sr.services.Get(name)
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			if stopErr := sr.StopServices(); stopErr != nil {
				return errors.Join(fmt.Errorf("failed to start %s: %w", name, err), stopErr)
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		sr.started = append(sr.started, name)
	}

	return nil
}

// StopServices stops the running services in reverse start order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.started) - 1; i >= 0; i-- {
		name := sr.started[i]
		svc, _ := sr.services.Get(name)
		if err := svc.Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	sr.started = nil

	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices initializes and registers enabled services based on configuration.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config) error {
	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (Service, error)
	}{
		{
			name:    "reporter",
			enabled: config.Services.Reporter.Enabled,
			constructor: func() (Service, error) {
				reporter := config.Services.Reporter
				provider, err := sr.newLocationProvider(config)
				if err != nil {
					return nil, err
				}
				return services.NewReporterService(
					reporter.Interval,
					reporter.RequestTimeout,
					reporter.StayRadius,
					sr.api,
					provider,
					sr.newBatteryReader(config),
					sr.Logger.With().Str("service", "reporter").Logger(),
				), nil
			},
		},
		{
			name:    "relay",
			enabled: config.Services.Relay.Enabled,
			constructor: func() (Service, error) {
				if sr.mqttClient == nil {
					return nil, errors.New("relay service requires an MQTT connection")
				}
				relay := config.Services.Relay
				return services.NewRelayService(
					relay.Topic,
					relay.Interval,
					relay.RequestTimeout,
					relay.QOS,
					relay.Retained,
					relay.MinDistance,
					relay.Usernames,
					sr.api,
					mqtt.NewPublisher(sr.mqttClient, relay.RequestTimeout),
					sr.Logger.With().Str("service", "relay").Logger(),
				), nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return fmt.Errorf("failed to create %s service: %w", svc.name, err)
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}

func (sr *ServiceRegistry) newLocationProvider(config *utils.Config) (location.Provider, error) {
	provider := config.Services.Reporter.Provider
	switch provider.Type {
	case utils.ProviderGoogle:
		google, err := location.NewGoogleGeolocationProvider(provider.MapsAPIKey, provider.ModemIndex)
		if err != nil {
			return nil, fmt.Errorf("failed to create Google Geolocation provider: %w", err)
		}
		return google, nil
	case utils.ProviderGPS:
		return location.NewDeviceSensorProvider(provider.GPSDevicePort, provider.GPSDeviceBaudRate), nil
	case utils.ProviderStatic:
		return location.NewStaticProvider(provider.Latitude, provider.Longitude, provider.Accuracy), nil
	default:
		return nil, fmt.Errorf("unknown location provider %q", provider.Type)
	}
}

func (sr *ServiceRegistry) newBatteryReader(config *utils.Config) power.Reader {
	battery := config.Services.Reporter.Battery
	if battery.Source == utils.BatterySysfs {
		return power.NewSysfsReader(sr.fileClient)
	}
	return power.StaticReader{Status: power.Status{Level: battery.Level, State: whoo.BatteryState(battery.State)}}
}
