package whoo_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benmeehan/whoo-agent/pkg/whoo"
)

const locationsBody = `{"locations":[
	{"latitude":35.6762,"longitude":139.6503,"user":{"id":1,"username":"alice","display_name":"Alice"}},
	{"latitude":34.6937,"longitude":135.5023,"user":{"id":2,"username":"bob","display_name":"Bob"}},
	{"latitude":43.0618,"longitude":141.3545,"user":{"id":3,"username":"alice","display_name":"Alice again"}}
]}`

func TestLocationService_UpdateLocation_FormUnits(t *testing.T) {
	api := newFakeAPI(t).on(http.MethodPatch, "/api/user/location", http.StatusOK, `{"ok":true}`)
	client := newTestClient(t, api)

	update := whoo.NewLocationUpdate(35.6762, 139.6503).
		WithBattery(50, whoo.BatteryDischarging).
		WithSpeed(36)
	record, err := client.UpdateLocation(context.Background(), update)
	require.NoError(t, err)
	assert.Equal(t, true, record["ok"])

	requests := api.recorded()
	require.Len(t, requests, 1)
	form := requests[0].Form
	assert.Equal(t, "Bearer test-token", requests[0].Header.Get("Authorization"))
	assert.Equal(t, "35.6762", form.Get("user_location[latitude]"))
	assert.Equal(t, "139.6503", form.Get("user_location[longitude]"))
	assert.Equal(t, "10", form.Get("user_location[speed]"))
	assert.Equal(t, "0.5", form.Get("user_battery[level]"))
	assert.Equal(t, "3", form.Get("user_battery[state]"))
	assert.NotContains(t, form, "user_location[horizontal_accuracy]")
	assert.NotContains(t, form, "user_location[stayed_at]")
}

func TestLocationService_UpdateLocation_Defaults(t *testing.T) {
	api := newFakeAPI(t).on(http.MethodPatch, "/api/user/location", http.StatusOK, `{}`)
	client := newTestClient(t, api)

	_, err := client.UpdateLocation(context.Background(), whoo.NewLocationUpdate(1, 2))
	require.NoError(t, err)

	form := api.recorded()[0].Form
	assert.Equal(t, "1", form.Get("user_battery[level]"))
	assert.Equal(t, "0", form.Get("user_battery[state]"))
	assert.Equal(t, "0", form.Get("user_location[speed]"))
}

func TestLocationService_UpdateLocation_OptionalFields(t *testing.T) {
	api := newFakeAPI(t).on(http.MethodPatch, "/api/user/location", http.StatusOK, `{}`)
	client := newTestClient(t, api)

	stayed := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	update := whoo.NewLocationUpdate(1, 2).WithAccuracy(12.5).WithStayedAt(stayed)
	_, err := client.UpdateLocation(context.Background(), update)
	require.NoError(t, err)

	form := api.recorded()[0].Form
	assert.Equal(t, "12.5", form.Get("user_location[horizontal_accuracy]"))
	assert.Equal(t, "2024-05-01T09:30:00Z", form.Get("user_location[stayed_at]"))
}

func TestLocationService_UpdateLocation_Invalid(t *testing.T) {
	api := newFakeAPI(t)
	client := newTestClient(t, api)

	updates := map[string]whoo.LocationUpdate{
		"latitude":  whoo.NewLocationUpdate(91, 0),
		"longitude": whoo.NewLocationUpdate(0, -181),
		"battery":   whoo.NewLocationUpdate(0, 0).WithBattery(101, whoo.BatteryFull),
		"state":     whoo.NewLocationUpdate(0, 0).WithBattery(50, whoo.BatteryState(9)),
		"speed":     whoo.NewLocationUpdate(0, 0).WithSpeed(-1),
	}
	for name, update := range updates {
		t.Run(name, func(t *testing.T) {
			_, err := client.UpdateLocation(context.Background(), update)
			assert.Equal(t, whoo.KindValidation, whoo.KindOf(err))
		})
	}
	assert.Empty(t, api.recorded())
}

func TestLocationService_GetLocations_KeyedByUsername(t *testing.T) {
	api := newFakeAPI(t).on(http.MethodGet, "/api/locations", http.StatusOK, locationsBody)
	client := newTestClient(t, api)

	locations, err := client.GetLocations(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob"}, locations.Keys())

	// Last entry wins for a repeated username.
	alice, ok := locations.Get("alice")
	require.True(t, ok)
	user, ok := alice.Record("user")
	require.True(t, ok)
	assert.Equal(t, "3", user.Text("id"))
	assert.NotContains(t, user, "username")
	assert.Equal(t, "https://maps.google.com/maps?q=43.0618,141.3545&t=k&z=24", alice.Text("map"))

	bob, ok := locations.Get("bob")
	require.True(t, ok)
	assert.Equal(t, "https://maps.google.com/maps?q=34.6937,135.5023&t=k&z=24", bob.Text("map"))
	assert.Equal(t, "https://www.google.com/maps/@?api=1&map_action=pano&viewpoint=34.6937,135.5023", bob.Text("pano"))
}

func TestLocationService_GetLocations_FilterByUser(t *testing.T) {
	api := newFakeAPI(t).on(http.MethodGet, "/api/locations", http.StatusOK, locationsBody)
	client := newTestClient(t, api)

	locations, err := client.GetLocations(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, locations.Keys())

	none, err := client.GetLocations(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, 0, none.Len())
}

func TestLocationService_GetLocations_UnexpectedShape(t *testing.T) {
	api := newFakeAPI(t).on(http.MethodGet, "/api/locations", http.StatusOK, `{"locations":"nope"}`)
	client := newTestClient(t, api)

	_, err := client.GetLocations(context.Background(), 0)
	assert.Equal(t, whoo.KindTransport, whoo.KindOf(err))
}

func TestLocationService_ReacquireLocation(t *testing.T) {
	api := newFakeAPI(t).on(http.MethodGet, "/api/users/42/location_request", http.StatusOK, `{"requested":true}`)
	client := newTestClient(t, api)

	record, err := client.ReacquireLocation(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, true, record["requested"])
}
