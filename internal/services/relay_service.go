package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang/geo/s2"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/benmeehan/whoo-agent/internal/models"
	"github.com/benmeehan/whoo-agent/internal/utils"
	"github.com/benmeehan/whoo-agent/pkg/whoo"
)

// LocationSource is the part of the whoo client the relay uses.
type LocationSource interface {
	GetLocations(ctx context.Context, userID int64) (*whoo.Locations, error)
}

// JSONPublisher publishes a document to an MQTT topic.
type JSONPublisher interface {
	PublishJSON(topic string, qos byte, retained bool, v any) error
}

// RelayStats summarizes one relay cycle.
type RelayStats struct {
	Published int
	Unmoved   int // within the minimum distance of the last publish
	Filtered  int // not on the allowlist
	Failed    int
}

// RelayService mirrors friends' locations from the service to an MQTT
// broker, one topic per username.
type RelayService struct {
	// Configuration fields
	topic          string
	interval       time.Duration
	requestTimeout time.Duration
	qos            byte
	retained       bool
	minDistance    float64             // meters
	allowlist      map[string]struct{} // empty means everyone

	// Dependencies
	source    LocationSource
	publisher JSONPublisher
	logger    zerolog.Logger
	now       func() time.Time

	// Last published position per username
	published cmap.ConcurrentMap[string, s2.LatLng]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRelayService creates a new RelayService instance with the provided configuration.
func NewRelayService(topic string, interval, requestTimeout time.Duration, qos int, retained bool, minDistance float64,
	usernames []string, source LocationSource, publisher JSONPublisher, logger zerolog.Logger) *RelayService {
	return &RelayService{
		topic:          topic,
		interval:       interval,
		requestTimeout: requestTimeout,
		qos:            byte(qos),
		retained:       retained,
		minDistance:    minDistance,
		allowlist:      utils.SliceToSet(usernames),
		source:         source,
		publisher:      publisher,
		logger:         logger,
		now:            time.Now,
		published:      cmap.New[s2.LatLng](),
	}
}

// Start launches the relay loop. The first cycle runs immediately.
func (s *RelayService) Start() error {
	if s.ctx != nil {
		s.logger.Warn().Msg("RelayService is already running")
		return errors.New("relay service is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(s.ctx)
	}()

	s.logger.Info().
		Str("topic", s.topic).
		Dur("interval", s.interval).
		Int("allowlist", len(s.allowlist)).
		Msg("RelayService started")
	return nil
}

// Stop gracefully stops the relay loop.
func (s *RelayService) Stop() error {
	if s.ctx == nil {
		s.logger.Warn().Msg("RelayService is not running")
		return errors.New("relay service is not running")
	}

	s.cancel()
	s.wg.Wait()
	s.ctx = nil
	s.cancel = nil

	s.logger.Info().Msg("RelayService stopped")
	return nil
}

func (s *RelayService) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		stats, err := s.RelayOnce(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.Error().
				Err(err).
				Str("kind", whoo.KindOf(err).String()).
				Msg("Failed to fetch friend locations")
		} else if err == nil {
			s.logger.Debug().Interface("stats", stats).Msg("Relay cycle finished")
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			s.logger.Info().Msg("RelayService is stopping")
			return
		}
	}
}

// RelayOnce fetches every friend's location and publishes those that moved.
// Only the fetch can fail the cycle; publish failures are counted and the
// friend is retried on the next cycle.
func (s *RelayService) RelayOnce(ctx context.Context) (RelayStats, error) {
	var stats RelayStats

	fetchCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()
	locations, err := s.source.GetLocations(fetchCtx, 0)
	if err != nil {
		return stats, err
	}

	relayedAt := s.now()
	for _, username := range locations.Keys() {
		if len(s.allowlist) > 0 {
			if _, ok := s.allowlist[username]; !ok {
				stats.Filtered++
				continue
			}
		}

		record, _ := locations.Get(username)
		latitude, longitude, err := coordinatesOf(record)
		if err != nil {
			s.logger.Warn().Err(err).Str("username", username).Msg("Skipping location without coordinates")
			stats.Failed++
			continue
		}

		point := s2.LatLngFromDegrees(latitude, longitude)
		if last, ok := s.published.Get(username); ok && distanceMeters(last, point) < s.minDistance {
			stats.Unmoved++
			continue
		}

		message := models.FriendLocation{
			Username:  username,
			Latitude:  latitude,
			Longitude: longitude,
			Location:  record,
			RelayedAt: relayedAt,
		}
		topic := s.topic + "/" + utils.TopicLevel(username)
		if err := s.publisher.PublishJSON(topic, s.qos, s.retained, message); err != nil {
			s.logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish friend location")
			stats.Failed++
			continue
		}

		s.published.Set(username, point)
		stats.Published++
	}

	return stats, nil
}

func coordinatesOf(record whoo.Record) (float64, float64, error) {
	latitude, err := strconv.ParseFloat(record.Text("latitude"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude: %w", err)
	}
	longitude, err := strconv.ParseFloat(record.Text("longitude"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude: %w", err)
	}
	return latitude, longitude, nil
}
