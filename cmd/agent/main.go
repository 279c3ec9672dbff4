package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/benmeehan/whoo-agent/internal/authentication"
	"github.com/benmeehan/whoo-agent/internal/service_registry"
	"github.com/benmeehan/whoo-agent/internal/utils"
	"github.com/benmeehan/whoo-agent/pkg/encryption"
	"github.com/benmeehan/whoo-agent/pkg/file"
	"github.com/benmeehan/whoo-agent/pkg/mqtt"
	"github.com/benmeehan/whoo-agent/pkg/tokenstore"
)

func main() {
	flags := pflag.NewFlagSet("whoo-agent", pflag.ExitOnError)
	configPath := flags.String("config", "configs/config.yaml", "path to the YAML configuration")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = flags.Parse(os.Args[1:])

	// Bootstrap logger until the configured level is known
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	overrides, err := utils.NewOverrides(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to bind configuration overrides")
	}

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig(*configPath, fileClient, overrides)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msgf("Invalid log level %q", config.LogLevel)
	}
	log = log.Level(level)

	// Optional encrypted token cache
	var store tokenstore.TokenStoreInterface
	if config.TokenCache.Enabled {
		encryptionManager, err := encryption.NewEncryptionManager(config.TokenCache.Passphrase, encryption.DefaultKDFParams)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create encryption manager")
		}
		store = tokenstore.NewTokenStore(config.TokenCache.File, config.Whoo.Email, fileClient, encryptionManager)
	}

	clientConfig, err := config.ClientConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build client configuration")
	}
	clientLogger := log.With().Str("component", "whoo").Logger()
	clientConfig.Logger = &clientLogger

	ctx, cancel := context.WithTimeout(context.Background(), config.Whoo.Timeout)
	client, err := authentication.NewAuthenticator(clientConfig, store, log).Authenticate(ctx)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to authenticate")
	}
	defer client.Close()

	// The shared MQTT connection is only needed by the relay
	var mqttClient mqtt.MQTTClient
	if config.Services.Relay.Enabled {
		// Generate a unique MQTT Client ID by appending a UUID
		clientID := config.MQTT.ClientID + "-" + uuid.New().String()
		log.Info().Msgf("Using MQTT Client ID: %s", clientID)

		mqttService := mqtt.NewMqttService(fileClient)
		err = mqttService.Initialize(mqtt.Options{
			Broker:     config.MQTT.Broker,
			ClientID:   clientID,
			Username:   config.MQTT.Username,
			Password:   config.MQTT.Password,
			CACertPath: config.MQTT.CACertificate,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
		}
		defer mqttService.Disconnect(250)
		mqttClient = mqttService
	}

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(client, mqttClient, fileClient, log)

	// Register all services based on the configuration
	if err := serviceRegistry.RegisterServices(config); err != nil {
		log.Fatal().Err(err).Msg("Failed to register services")
	}

	// Start all registered services in the registry
	if err := serviceRegistry.StartServices(); err != nil {
		log.Error().Err(err).Msg("Failed to start services")
		return
	}
	log.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Failed to stop services cleanly")
	}
}
