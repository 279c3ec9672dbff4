package location

import (
	"context"
	"errors"
	"time"

	"googlemaps.github.io/maps"
)

// geolocateTimeout bounds one Geolocation API call.
const geolocateTimeout = 10 * time.Second

// GoogleGeolocationProvider uses the Google Maps Geolocation API to locate the
// device from nearby Wi-Fi access points and the serving cell tower.
type GoogleGeolocationProvider struct {
	client     *maps.Client // Maps API client for making geolocation requests
	modemIndex int          // ModemManager index used for the cell tower lookup

	scanWiFi  func(ctx context.Context) ([]maps.WiFiAccessPoint, error)
	scanCells func(ctx context.Context, modemIndex int) ([]maps.CellTower, error)
}

// NewGoogleGeolocationProvider creates a new GoogleGeolocationProvider instance.
// Extra options are passed to the Maps client.
func NewGoogleGeolocationProvider(apiKey string, modemIndex int, options ...maps.ClientOption) (*GoogleGeolocationProvider, error) {
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, options...)...)
	if err != nil {
		return nil, err
	}

	return &GoogleGeolocationProvider{
		client:     c,
		modemIndex: modemIndex,
		scanWiFi:   getWiFiAccessPoints,
		scanCells:  getCellTowers,
	}, nil
}

// GetLocation retrieves the device's location. Missing Wi-Fi or cell data is
// not fatal: the API then falls back to the caller's IP address.
func (g *GoogleGeolocationProvider) GetLocation(ctx context.Context) (Location, error) {
	ctx, cancel := context.WithTimeout(ctx, geolocateTimeout)
	defer cancel()

	wifiAPs, wifiErr := g.scanWiFi(ctx)
	cellTowers, cellErr := g.scanCells(ctx, g.modemIndex)
	if errors.Is(ctx.Err(), context.Canceled) {
		return Location{}, ctx.Err()
	}

	req := &maps.GeolocationRequest{
		ConsiderIP: true,
	}
	if wifiErr == nil {
		req.WiFiAccessPoints = wifiAPs
	}
	if cellErr == nil {
		req.CellTowers = cellTowers
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		return Location{}, err
	}

	return Location{
		Latitude:  resp.Location.Lat,
		Longitude: resp.Location.Lng,
		Accuracy:  resp.Accuracy,
	}, nil
}

func (g *GoogleGeolocationProvider) Close() error { return nil }
