package services

import "github.com/golang/geo/s2"

// earthRadiusMeters is the IUGG mean Earth radius.
const earthRadiusMeters = 6371008.8

// distanceMeters returns the great-circle distance between a and b.
func distanceMeters(a, b s2.LatLng) float64 {
	return a.Distance(b).Radians() * earthRadiusMeters
}
