package models

import (
	"time"

	"github.com/benmeehan/whoo-agent/pkg/whoo"
)

// Report is what the reporter sent to the service in one cycle.
type Report struct {
	Timestamp    time.Time  `json:"timestamp"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	Accuracy     float64    `json:"accuracy"`
	SpeedKmh     float64    `json:"speed_kmh"`
	BatteryLevel float64    `json:"battery_level"`
	BatteryState string     `json:"battery_state"`
	StayedAt     *time.Time `json:"stayed_at,omitempty"`
}

// FriendLocation is the MQTT payload the relay publishes for one friend.
type FriendLocation struct {
	Username  string      `json:"username"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Location  whoo.Record `json:"location"` // Record as returned by the service
	RelayedAt time.Time   `json:"relayed_at"`
}
