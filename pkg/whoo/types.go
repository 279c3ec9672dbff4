package whoo

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is a JSON object returned by the service, passed through as decoded.
// Numbers are json.Number so identifiers and coordinates keep their exact text.
type Record map[string]any

// Text returns the field as text, or "" when absent or null.
func (r Record) Text(key string) string {
	value, ok := r[key]
	if !ok || value == nil {
		return ""
	}
	return scalarText(value)
}

// Int64 returns the field as an integer.
func (r Record) Int64(key string) (int64, bool) {
	switch value := r[key].(type) {
	case json.Number:
		n, err := value.Int64()
		return n, err == nil
	case float64:
		return int64(value), true
	case string:
		n, err := strconv.ParseInt(value, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Record returns a nested object field.
func (r Record) Record(key string) (Record, bool) {
	nested, ok := r[key].(map[string]any)
	return Record(nested), ok
}

// BatteryState is the charging state in the service's integer encoding.
type BatteryState int

const (
	BatteryUnknown     BatteryState = 0
	BatteryCharging    BatteryState = 1
	BatteryFull        BatteryState = 2
	BatteryDischarging BatteryState = 3
)

func (s BatteryState) String() string {
	switch s {
	case BatteryCharging:
		return "charging"
	case BatteryFull:
		return "full"
	case BatteryDischarging:
		return "discharging"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the four known states.
func (s BatteryState) Valid() bool {
	return s >= BatteryUnknown && s <= BatteryDischarging
}

// Coordinates is a WGS84 position in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

func (c Coordinates) validate() string {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Sprintf("latitude %v out of range", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Sprintf("longitude %v out of range", c.Longitude)
	}
	return ""
}

// ProfileUpdate names the account fields to change. Nil fields are left alone.
type ProfileUpdate struct {
	Name         *string
	ProfileImage *string
	Username     *string
}

func (p ProfileUpdate) empty() bool {
	return p.Name == nil && p.ProfileImage == nil && p.Username == nil
}

// NewAccount holds the fields for account creation. Location is optional.
type NewAccount struct {
	Email        string
	Password     string
	Name         string
	ProfileImage string
	Username     string
	Location     *Coordinates
}

// DeleteResult is the outcome of DeleteAccount. It is DeleteFailed whenever
// an error is returned.
type DeleteResult int

const (
	DeleteFailed DeleteResult = iota
	DeleteSucceeded
	DeleteCancelled
)

func (r DeleteResult) String() string {
	switch r {
	case DeleteSucceeded:
		return "succeeded"
	case DeleteCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// String returns a pointer to s, for the optional fields of ProfileUpdate.
func String(s string) *string {
	return &s
}

// scalarText renders a decoded JSON scalar without changing its digits.
func scalarText(value any) string {
	switch v := value.(type) {
	case json.Number:
		return v.String()
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
