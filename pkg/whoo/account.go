package whoo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/benmeehan/whoo-agent/pkg/transport"
)

// AccountService manages the caller's own account.
type AccountService struct {
	transport *transport.Transport
	confirmer Confirmer
	logger    zerolog.Logger
}

// Info returns the authenticated user's account.
func (s *AccountService) Info(ctx context.Context) (Record, error) {
	const op = "account info"
	if err := requireToken(s.transport, op); err != nil {
		return nil, err
	}
	response, err := s.transport.Do(ctx, transport.Request{Op: op, Method: http.MethodGet, Path: "/api/my"})
	if err != nil {
		return nil, err
	}
	return recordOf(response)
}

// CreateAccount registers a new account. It works without a token. When
// account.Location is set, the initial location is published with the token
// issued for the new account; if that second call fails, the created account
// is returned together with the error.
func (s *AccountService) CreateAccount(ctx context.Context, account NewAccount) (Record, error) {
	const op = "create account"
	if account.Email == "" || account.Password == "" || account.Username == "" {
		return nil, &ValidationError{Op: op, Reason: "email, password and username are required"}
	}
	if account.Location != nil {
		if reason := account.Location.validate(); reason != "" {
			return nil, &ValidationError{Op: op, Reason: reason}
		}
	}

	form := url.Values{}
	form.Set("user[email]", account.Email)
	form.Set("user[password]", account.Password)
	form.Set("user[display_name]", account.Name)
	form.Set("user[profile_image]", account.ProfileImage)
	form.Set("user[username]", account.Username)

	response, err := s.transport.Do(ctx, transport.Request{
		Op:     op,
		Method: http.MethodPost,
		Path:   "/api/email/users",
		Form:   form,
	})
	if err != nil {
		return nil, err
	}
	created, err := recordOf(response)
	if err != nil {
		return nil, err
	}
	if account.Location == nil {
		return created, nil
	}

	token := created.Text("access_token")
	if token == "" {
		return created, &AuthError{Op: "set initial location", Err: ErrNoAccessToken}
	}

	initial := NewLocationUpdate(account.Location.Latitude, account.Location.Longitude).
		WithBattery(DefaultBatteryLevel, BatteryCharging)
	locations := &LocationService{transport: s.transport.WithToken(token)}
	if _, err := locations.UpdateLocation(ctx, initial); err != nil {
		s.logger.Warn().Err(err).Str("username", account.Username).Msg("Account created but initial location was rejected")
		return created, fmt.Errorf("whoo: account created, initial location failed: %w", err)
	}
	return created, nil
}

// UpdateAccount changes the given fields with a form-encoded request.
func (s *AccountService) UpdateAccount(ctx context.Context, update ProfileUpdate) (Record, error) {
	const op = "update account"
	if err := requireToken(s.transport, op); err != nil {
		return nil, err
	}
	if update.empty() {
		return nil, &ValidationError{Op: op, Reason: "nothing to update"}
	}

	form := url.Values{}
	if update.Name != nil {
		form.Set("user[display_name]", *update.Name)
	}
	if update.ProfileImage != nil {
		form.Set("user[profile_image]", *update.ProfileImage)
	}
	if update.Username != nil {
		form.Set("user[username]", *update.Username)
	}

	response, err := s.transport.Do(ctx, transport.Request{Op: op, Method: http.MethodPatch, Path: "/api/user", Form: form})
	if err != nil {
		return nil, err
	}
	return recordOf(response)
}

// UpdateProfile changes the given fields with a JSON request.
func (s *AccountService) UpdateProfile(ctx context.Context, update ProfileUpdate) (Record, error) {
	const op = "update profile"
	if err := requireToken(s.transport, op); err != nil {
		return nil, err
	}
	if update.empty() {
		return nil, &ValidationError{Op: op, Reason: "nothing to update"}
	}

	body := map[string]string{}
	if update.Name != nil {
		body["display_name"] = *update.Name
	}
	if update.ProfileImage != nil {
		body["profile_image"] = *update.ProfileImage
	}
	if update.Username != nil {
		body["username"] = *update.Username
	}

	response, err := s.transport.Do(ctx, transport.Request{Op: op, Method: http.MethodPatch, Path: "/api/user", JSON: body})
	if err != nil {
		return nil, err
	}
	return recordOf(response)
}

// DeleteAccount deletes the account. With confirm set, the Confirmer is
// asked first and a refusal returns DeleteCancelled without a request. Any
// error comes with DeleteFailed.
func (s *AccountService) DeleteAccount(ctx context.Context, confirm bool) (DeleteResult, error) {
	const op = "delete account"
	if err := requireToken(s.transport, op); err != nil {
		return DeleteFailed, err
	}

	if confirm {
		approved, err := s.confirmer.Confirm("Are you sure? (y/n): ")
		if err != nil {
			return DeleteFailed, fmt.Errorf("whoo: %s: confirmation failed: %w", op, err)
		}
		if !approved {
			return DeleteCancelled, nil
		}
	}

	_, err := s.transport.Do(ctx, transport.Request{
		Op:     op,
		Method: http.MethodDelete,
		Path:   "/api/user",
		Expect: http.StatusNoContent,
	})
	if err != nil {
		return DeleteFailed, err
	}
	s.logger.Info().Msg("Account deleted")
	return DeleteSucceeded, nil
}
