// Package whoo is a client for the whoo location sharing HTTP API.
//
// # Authentication
//
// A Client is created in one of three modes:
//
//	// Pre-obtained access token, checked once against /api/my.
//	client, err := whoo.New(ctx, whoo.Config{AccessToken: token})
//
//	// Email and password exchanged for a token.
//	client, err := whoo.New(ctx, whoo.Config{Email: email, Password: password})
//
//	// No credentials: only CreateAccount and Login work.
//	client, err := whoo.New(ctx, whoo.Config{})
//
// Every other method fails with an *AuthError wrapping ErrTokenRequired,
// without touching the network, until the client holds a token.
//
// # Operations
//
// The facade embeds one service per resource, so both forms work:
//
//	client.UpdateLocation(ctx, whoo.NewLocationUpdate(35.6762, 139.6503))
//	client.LocationService.UpdateLocation(ctx, update)
//
// Each method is a single synchronous HTTP exchange (GetUser with friends is
// the exception: it follows the friend list pagination). Nothing is retried.
//
// # Errors
//
// Failures are one of AuthError, HTTPError, TransportError, NotFoundError or
// ValidationError. KindOf classifies any returned error.
//
// # Service quirks
//
// Presence uses different success statuses: going online answers 200 with a
// body, going offline answers 204. Each operation accepts only its own
// status. Account updates exist as a form-encoded variant (UpdateAccount) and
// a JSON variant (UpdateProfile) because both are accepted by the service.
package whoo
