package location

import "context"

// Location is a position fix reported by a Provider.
type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64 // Horizontal accuracy in meters, 0 when unknown
	SpeedKmh  float64 // Ground speed in km/h, 0 when unknown
}

// Provider defines the methods for location providers.
type Provider interface {
	GetLocation(ctx context.Context) (Location, error)
	Close() error
}
