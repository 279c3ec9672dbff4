package whoo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/benmeehan/whoo-agent/pkg/transport"
)

const (
	// DefaultBatteryLevel is the battery percentage sent when none is given.
	DefaultBatteryLevel = 100
	// speedConversionFactor converts km/h to the m/s the service expects.
	speedConversionFactor = 3.6

	mapURLFormat  = "https://maps.google.com/maps?q=%s,%s&t=k&z=24"
	panoURLFormat = "https://www.google.com/maps/@?api=1&map_action=pano&viewpoint=%s,%s"
)

// Locations maps usernames to location records in server response order.
type Locations = orderedmap.OrderedMap[string, Record]

// LocationUpdate is the payload of UpdateLocation. Build it with
// NewLocationUpdate so the battery level starts at DefaultBatteryLevel.
type LocationUpdate struct {
	Coordinates  Coordinates
	BatteryLevel float64      // Percentage, 0-100
	BatteryState BatteryState // Charging state
	SpeedKmh     float64      // Ground speed in km/h
	StayedAt     *time.Time   // Optional start of the current stay
	Accuracy     *float64     // Optional horizontal accuracy in meters
}

// NewLocationUpdate returns an update for the given position with full
// battery, unknown battery state and zero speed.
func NewLocationUpdate(latitude, longitude float64) LocationUpdate {
	return LocationUpdate{
		Coordinates:  Coordinates{Latitude: latitude, Longitude: longitude},
		BatteryLevel: DefaultBatteryLevel,
		BatteryState: BatteryUnknown,
	}
}

// WithBattery sets the battery percentage and state.
func (u LocationUpdate) WithBattery(level float64, state BatteryState) LocationUpdate {
	u.BatteryLevel = level
	u.BatteryState = state
	return u
}

// WithSpeed sets the ground speed in km/h.
func (u LocationUpdate) WithSpeed(kmh float64) LocationUpdate {
	u.SpeedKmh = kmh
	return u
}

// WithStayedAt sets the time the device arrived at its current position.
func (u LocationUpdate) WithStayedAt(at time.Time) LocationUpdate {
	u.StayedAt = &at
	return u
}

// WithAccuracy sets the horizontal accuracy in meters.
func (u LocationUpdate) WithAccuracy(meters float64) LocationUpdate {
	u.Accuracy = &meters
	return u
}

func (u LocationUpdate) validate() string {
	if reason := u.Coordinates.validate(); reason != "" {
		return reason
	}
	if u.BatteryLevel < 0 || u.BatteryLevel > 100 {
		return fmt.Sprintf("battery level %v outside 0-100", u.BatteryLevel)
	}
	if !u.BatteryState.Valid() {
		return fmt.Sprintf("unknown battery state %d", u.BatteryState)
	}
	if u.SpeedKmh < 0 {
		return fmt.Sprintf("negative speed %v", u.SpeedKmh)
	}
	return ""
}

// form encodes the update with the service's field names and units.
func (u LocationUpdate) form() url.Values {
	form := url.Values{}
	form.Set("user_location[latitude]", formatFloat(u.Coordinates.Latitude))
	form.Set("user_location[longitude]", formatFloat(u.Coordinates.Longitude))
	form.Set("user_location[speed]", formatFloat(u.SpeedKmh/speedConversionFactor))
	form.Set("user_battery[level]", formatFloat(u.BatteryLevel/100))
	form.Set("user_battery[state]", strconv.Itoa(int(u.BatteryState)))
	if u.Accuracy != nil {
		form.Set("user_location[horizontal_accuracy]", formatFloat(*u.Accuracy))
	}
	if u.StayedAt != nil {
		form.Set("user_location[stayed_at]", u.StayedAt.Format(time.RFC3339))
	}
	return form
}

// LocationService reads and writes geolocation and battery telemetry.
type LocationService struct {
	transport *transport.Transport
}

// UpdateLocation publishes the caller's position and battery state.
func (s *LocationService) UpdateLocation(ctx context.Context, update LocationUpdate) (Record, error) {
	const op = "update location"
	if err := requireToken(s.transport, op); err != nil {
		return nil, err
	}
	if reason := update.validate(); reason != "" {
		return nil, &ValidationError{Op: op, Reason: reason}
	}

	response, err := s.transport.Do(ctx, transport.Request{
		Op:     op,
		Method: http.MethodPatch,
		Path:   "/api/user/location",
		Form:   update.form(),
	})
	if err != nil {
		return nil, err
	}
	return recordOf(response)
}

// GetLocations returns every friend's current location keyed by username.
// A non-zero userID restricts the result to that user. Each record gains
// "map" and "pano" links built from its coordinates, and the nested user
// object loses its "username" field, which became the key.
func (s *LocationService) GetLocations(ctx context.Context, userID int64) (*Locations, error) {
	const op = "get locations"
	if err := requireToken(s.transport, op); err != nil {
		return nil, err
	}

	response, err := s.transport.Do(ctx, transport.Request{Op: op, Method: http.MethodGet, Path: "/api/locations"})
	if err != nil {
		return nil, err
	}
	body, err := response.Object()
	if err != nil {
		return nil, err
	}
	entries, ok := body["locations"].([]any)
	if !ok {
		return nil, response.Unexpected("missing locations list")
	}

	filter := ""
	if userID != 0 {
		filter = strconv.FormatInt(userID, 10)
	}

	locations := orderedmap.NewOrderedMap[string, Record]()
	for _, entry := range entries {
		location, ok := entry.(map[string]any)
		if !ok {
			return nil, response.Unexpected("location entry is not an object")
		}
		user, ok := Record(location).Record("user")
		if !ok {
			return nil, response.Unexpected("location entry has no user")
		}
		username := user.Text("username")
		delete(user, "username")

		if filter != "" && user.Text("id") != filter {
			continue
		}

		latitude := Record(location).Text("latitude")
		longitude := Record(location).Text("longitude")
		location["map"] = fmt.Sprintf(mapURLFormat, latitude, longitude)
		location["pano"] = fmt.Sprintf(panoURLFormat, latitude, longitude)

		// Set keeps the first position of a repeated key and stores the last value.
		locations.Set(username, Record(location))
	}

	return locations, nil
}

// ReacquireLocation asks another user's device to report a fresh location.
func (s *LocationService) ReacquireLocation(ctx context.Context, userID int64) (Record, error) {
	const op = "reacquire location"
	if err := requireToken(s.transport, op); err != nil {
		return nil, err
	}

	response, err := s.transport.Do(ctx, transport.Request{
		Op:     op,
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/api/users/%d/location_request", userID),
	})
	if err != nil {
		return nil, err
	}
	return recordOf(response)
}
