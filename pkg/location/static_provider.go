package location

import "context"

// StaticProvider always reports the same position.
type StaticProvider struct {
	location Location
}

// NewStaticProvider creates a provider fixed at the given coordinates.
func NewStaticProvider(latitude, longitude, accuracy float64) *StaticProvider {
	return &StaticProvider{location: Location{Latitude: latitude, Longitude: longitude, Accuracy: accuracy}}
}

func (s *StaticProvider) GetLocation(ctx context.Context) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}
	return s.location, nil
}

func (s *StaticProvider) Close() error { return nil }
