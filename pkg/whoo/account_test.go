package whoo_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benmeehan/whoo-agent/pkg/whoo"
)

func TestAccountService_UpdateAccount_Empty(t *testing.T) {
	api := newFakeAPI(t)
	client := newTestClient(t, api)

	_, err := client.UpdateAccount(context.Background(), whoo.ProfileUpdate{})
	assert.Equal(t, whoo.KindValidation, whoo.KindOf(err))
	_, err = client.UpdateProfile(context.Background(), whoo.ProfileUpdate{})
	assert.Equal(t, whoo.KindValidation, whoo.KindOf(err))
	assert.Empty(t, api.recorded())
}

func TestAccountService_UpdateAccount_OnlyGivenFields(t *testing.T) {
	api := newFakeAPI(t).on(http.MethodPatch, "/api/user", http.StatusOK, `{"display_name":"New"}`)
	client := newTestClient(t, api)

	record, err := client.UpdateAccount(context.Background(), whoo.ProfileUpdate{Name: whoo.String("New")})
	require.NoError(t, err)
	assert.Equal(t, "New", record.Text("display_name"))

	form := api.recorded()[0].Form
	assert.Equal(t, "New", form.Get("user[display_name]"))
	assert.NotContains(t, form, "user[username]")
	assert.NotContains(t, form, "user[profile_image]")
}

func TestAccountService_UpdateProfile_JSON(t *testing.T) {
	api := newFakeAPI(t).on(http.MethodPatch, "/api/user", http.StatusOK, `{}`)
	client := newTestClient(t, api)

	_, err := client.UpdateProfile(context.Background(), whoo.ProfileUpdate{Username: whoo.String("neo")})
	require.NoError(t, err)

	request := api.recorded()[0]
	assert.True(t, strings.HasPrefix(request.Header.Get("Content-Type"), "application/json"))
	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(request.Body), &body))
	assert.Equal(t, map[string]string{"username": "neo"}, body)
}

func TestAccountService_CreateAccount_InitialLocation(t *testing.T) {
	api := newFakeAPI(t).
		on(http.MethodPost, "/api/email/users", http.StatusOK, `{"access_token":"fresh","user":{"id":100}}`).
		on(http.MethodPatch, "/api/user/location", http.StatusOK, `{}`)
	client := newAnonymousClient(t, api)

	created, err := client.CreateAccount(context.Background(), whoo.NewAccount{
		Email:    "new@example.com",
		Password: "pw",
		Name:     "Newbie",
		Username: "newbie",
		Location: &whoo.Coordinates{Latitude: 35.0, Longitude: 139.0},
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", created.Text("access_token"))

	requests := api.recorded()
	require.Len(t, requests, 2)
	assert.Equal(t, "new@example.com", requests[0].Form.Get("user[email]"))
	assert.Equal(t, "newbie", requests[0].Form.Get("user[username]"))
	assert.Empty(t, requests[0].Header.Get("Authorization"))

	assert.Equal(t, "Bearer fresh", requests[1].Header.Get("Authorization"))
	assert.Equal(t, "1", requests[1].Form.Get("user_battery[level]"))
	assert.Equal(t, "1", requests[1].Form.Get("user_battery[state]"))
	assert.Equal(t, "0", requests[1].Form.Get("user_location[speed]"))

	// The creating client stays anonymous.
	assert.False(t, client.Authenticated())
}

func TestAccountService_CreateAccount_InitialLocationFails(t *testing.T) {
	api := newFakeAPI(t).
		on(http.MethodPost, "/api/email/users", http.StatusOK, `{"access_token":"fresh"}`).
		on(http.MethodPatch, "/api/user/location", http.StatusInternalServerError, `{"error":"down"}`)
	client := newAnonymousClient(t, api)

	created, err := client.CreateAccount(context.Background(), whoo.NewAccount{
		Email:    "new@example.com",
		Password: "pw",
		Username: "newbie",
		Location: &whoo.Coordinates{Latitude: 1, Longitude: 2},
	})
	require.Error(t, err)
	assert.Equal(t, whoo.KindHTTP, whoo.KindOf(err))
	assert.Equal(t, "fresh", created.Text("access_token"))
}

func TestAccountService_CreateAccount_MissingFields(t *testing.T) {
	api := newFakeAPI(t)
	client := newAnonymousClient(t, api)

	_, err := client.CreateAccount(context.Background(), whoo.NewAccount{Email: "a@b.c"})
	assert.Equal(t, whoo.KindValidation, whoo.KindOf(err))
	assert.Empty(t, api.recorded())
}

func TestAccountService_DeleteAccount(t *testing.T) {
	tests := []struct {
		name     string
		confirm  bool
		answer   bool
		result   whoo.DeleteResult
		requests int
	}{
		{name: "declined", confirm: true, answer: false, result: whoo.DeleteCancelled, requests: 0},
		{name: "approved", confirm: true, answer: true, result: whoo.DeleteSucceeded, requests: 1},
		{name: "unconfirmed", confirm: false, result: whoo.DeleteSucceeded, requests: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t).on(http.MethodDelete, "/api/user", http.StatusNoContent, "")
			asked := false
			client, err := whoo.New(context.Background(), whoo.Config{
				BaseURL:        api.server.URL,
				AccessToken:    "test-token",
				SkipTokenCheck: true,
				Confirmer: whoo.ConfirmFunc(func(prompt string) (bool, error) {
					asked = true
					assert.Equal(t, "Are you sure? (y/n): ", prompt)
					return tt.answer, nil
				}),
			})
			require.NoError(t, err)

			result, err := client.DeleteAccount(context.Background(), tt.confirm)
			require.NoError(t, err)
			assert.Equal(t, tt.result, result)
			assert.Equal(t, tt.confirm, asked)
			assert.Len(t, api.recorded(), tt.requests)
		})
	}
}

func TestAccountService_DeleteAccount_ConfirmerError(t *testing.T) {
	api := newFakeAPI(t)
	failure := errors.New("stdin closed")
	client, err := whoo.New(context.Background(), whoo.Config{
		BaseURL:        api.server.URL,
		AccessToken:    "test-token",
		SkipTokenCheck: true,
		Confirmer:      whoo.ConfirmFunc(func(string) (bool, error) { return false, failure }),
	})
	require.NoError(t, err)

	result, err := client.DeleteAccount(context.Background(), true)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, whoo.DeleteFailed, result)
	assert.Empty(t, api.recorded())
}

func TestAccountService_DeleteAccount_Rejected(t *testing.T) {
	api := newFakeAPI(t).on(http.MethodDelete, "/api/user", http.StatusForbidden, `{"error":"forbidden"}`)
	client := newTestClient(t, api)

	result, err := client.DeleteAccount(context.Background(), false)
	var httpErr *whoo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
	assert.Equal(t, whoo.DeleteFailed, result)
	assert.Equal(t, "failed", result.String())
}

func TestPromptConfirmer_Confirm(t *testing.T) {
	answers := map[string]bool{"y\n": true, "yes\n": false, "n\n": false, "": false, " y \n": true}
	for input, want := range answers {
		var out strings.Builder
		confirmer := whoo.PromptConfirmer{In: strings.NewReader(input), Out: &out}

		approved, err := confirmer.Confirm("ok? ")
		require.NoError(t, err)
		assert.Equal(t, want, approved, "input %q", input)
		assert.Equal(t, "ok? ", out.String())
	}
}

func TestPromptConfirmer_Confirm_SharedInput(t *testing.T) {
	var out strings.Builder
	confirmer := whoo.PromptConfirmer{In: strings.NewReader("n\ny\n"), Out: &out}

	first, err := confirmer.Confirm("ok? ")
	require.NoError(t, err)
	second, err := confirmer.Confirm("ok? ")
	require.NoError(t, err)

	assert.False(t, first)
	assert.True(t, second)
	assert.Equal(t, "ok? ok? ", out.String())
}

func TestAccountService_Info(t *testing.T) {
	api := newFakeAPI(t).on(http.MethodGet, "/api/my", http.StatusOK, `{"id":1,"username":"me"}`)
	client := newTestClient(t, api)

	info, err := client.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "me", info.Text("username"))
}
