package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/geo/s2"
	"github.com/rs/zerolog"

	"github.com/benmeehan/whoo-agent/internal/models"
	"github.com/benmeehan/whoo-agent/pkg/location"
	"github.com/benmeehan/whoo-agent/pkg/power"
	"github.com/benmeehan/whoo-agent/pkg/whoo"
)

// LocationReporter is the part of the whoo client the reporter uses.
type LocationReporter interface {
	Online(ctx context.Context) (whoo.Record, error)
	Offline(ctx context.Context) error
	UpdateLocation(ctx context.Context, update whoo.LocationUpdate) (whoo.Record, error)
}

// stay is where the device has been since when.
type stay struct {
	point s2.LatLng
	since time.Time
}

// ReporterService marks the user online, periodically publishes this
// device's location and battery to the service, and marks the user offline
// when stopped.
type ReporterService struct {
	// Configuration fields
	interval       time.Duration
	requestTimeout time.Duration
	stayRadius     float64 // meters; 0 disables stayed_at

	// Dependencies
	api      LocationReporter
	provider location.Provider
	battery  power.Reader
	logger   zerolog.Logger
	now      func() time.Time

	// Internal state management
	current *stay
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewReporterService creates a new ReporterService instance with the provided configuration.
func NewReporterService(interval, requestTimeout time.Duration, stayRadius float64, api LocationReporter,
	provider location.Provider, battery power.Reader, logger zerolog.Logger) *ReporterService {
	return &ReporterService{
		interval:       interval,
		requestTimeout: requestTimeout,
		stayRadius:     stayRadius,
		api:            api,
		provider:       provider,
		battery:        battery,
		logger:         logger,
		now:            time.Now,
	}
}

// Start goes online and launches the reporting loop. The first report is
// sent immediately.
func (r *ReporterService) Start() error {
	if r.ctx != nil {
		r.logger.Warn().Msg("ReporterService is already running")
		return errors.New("reporter service is already running")
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(r.ctx)
	}()

	r.logger.Info().
		Dur("interval", r.interval).
		Float64("stay_radius_m", r.stayRadius).
		Msg("ReporterService started")
	return nil
}

// Stop ends the loop, goes offline and closes the location provider.
func (r *ReporterService) Stop() error {
	if r.ctx == nil {
		r.logger.Warn().Msg("ReporterService is not running")
		return errors.New("reporter service is not running")
	}

	r.cancel()
	r.wg.Wait()
	r.ctx = nil
	r.cancel = nil

	var errs []error
	ctx, cancel := context.WithTimeout(context.Background(), r.requestTimeout)
	defer cancel()
	if err := r.api.Offline(ctx); err != nil {
		r.logger.Error().Err(err).Msg("Failed to go offline")
		errs = append(errs, fmt.Errorf("offline: %w", err))
	}

	if err := r.provider.Close(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to close location provider")
		errs = append(errs, fmt.Errorf("close location provider: %w", err))
	}

	r.logger.Info().Msg("ReporterService stopped")
	return errors.Join(errs...)
}

func (r *ReporterService) run(ctx context.Context) {
	onlineCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	if _, err := r.api.Online(onlineCtx); err != nil {
		r.logger.Error().Err(err).Msg("Failed to go online")
	}
	cancel()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.ReportOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error().
				Err(err).
				Str("kind", whoo.KindOf(err).String()).
				Msg("Failed to report location")
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			r.logger.Info().Msg("ReporterService is stopping")
			return
		}
	}
}

// ReportOnce reads the position and battery and publishes them. A battery
// read failure is not fatal: the report then carries the default level.
func (r *ReporterService) ReportOnce(ctx context.Context) (models.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	fix, err := r.provider.GetLocation(ctx)
	if err != nil {
		return models.Report{}, fmt.Errorf("failed to get location from provider: %w", err)
	}

	status, err := r.battery.Read()
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to read battery, reporting default level")
		status = power.Status{Level: whoo.DefaultBatteryLevel, State: whoo.BatteryUnknown}
	}

	now := r.now()
	update := whoo.NewLocationUpdate(fix.Latitude, fix.Longitude).
		WithBattery(status.Level, status.State).
		WithSpeed(fix.SpeedKmh)
	if fix.Accuracy > 0 {
		update = update.WithAccuracy(fix.Accuracy)
	}
	stayedAt := r.trackStay(fix, now)
	if stayedAt != nil {
		update = update.WithStayedAt(*stayedAt)
	}

	if _, err := r.api.UpdateLocation(ctx, update); err != nil {
		return models.Report{}, err
	}

	report := models.Report{
		Timestamp:    now,
		Latitude:     fix.Latitude,
		Longitude:    fix.Longitude,
		Accuracy:     fix.Accuracy,
		SpeedKmh:     fix.SpeedKmh,
		BatteryLevel: status.Level,
		BatteryState: status.State.String(),
		StayedAt:     stayedAt,
	}
	r.logger.Debug().Interface("report", report).Msg("Location reported")
	return report, nil
}

// trackStay returns when the device arrived within stayRadius of fix. A
// move beyond the radius starts a new stay.
func (r *ReporterService) trackStay(fix location.Location, now time.Time) *time.Time {
	if r.stayRadius <= 0 {
		return nil
	}

	point := s2.LatLngFromDegrees(fix.Latitude, fix.Longitude)
	if r.current == nil || distanceMeters(r.current.point, point) > r.stayRadius {
		r.current = &stay{point: point, since: now}
	}
	since := r.current.since
	return &since
}
