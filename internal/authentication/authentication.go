package authentication

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/benmeehan/whoo-agent/pkg/tokenstore"
	"github.com/benmeehan/whoo-agent/pkg/whoo"
)

// ErrNoCredentials is returned when neither a token nor email/password is configured.
var ErrNoCredentials = errors.New("no access token or email/password configured")

// Authenticator produces an authenticated client, preferring in order an
// explicit access token, the cached token and an email/password login.
type Authenticator struct {
	config whoo.Config
	store  tokenstore.TokenStoreInterface // nil disables the cache
	logger zerolog.Logger
}

// NewAuthenticator creates a new Authenticator. store may be nil.
func NewAuthenticator(config whoo.Config, store tokenstore.TokenStoreInterface, logger zerolog.Logger) *Authenticator {
	return &Authenticator{config: config, store: store, logger: logger}
}

// Authenticate returns a client holding a token the service accepted. A
// cached token the service rejects is cleared before falling back to login.
func (a *Authenticator) Authenticate(ctx context.Context) (*whoo.Client, error) {
	if a.config.AccessToken != "" {
		a.logger.Info().Msg("Using configured access token")
		return whoo.New(ctx, a.config)
	}

	if client, err := a.fromCache(ctx); client != nil || err != nil {
		return client, err
	}

	if a.config.Email == "" || a.config.Password == "" {
		return nil, ErrNoCredentials
	}

	a.logger.Info().Msg("Logging in with email and password")
	client, err := whoo.New(ctx, a.config)
	if err != nil {
		return nil, err
	}

	if a.store != nil {
		if err := a.store.Save(client.AccessToken()); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to cache access token")
		}
	}
	return client, nil
}

// fromCache returns (nil, nil) when there is no usable cached token.
func (a *Authenticator) fromCache(ctx context.Context) (*whoo.Client, error) {
	if a.store == nil {
		return nil, nil
	}

	token, err := a.store.Load()
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to load cached token, ignoring it")
		return nil, nil
	}
	if token == "" {
		return nil, nil
	}

	config := a.config
	config.AccessToken = token
	config.SkipTokenCheck = false
	config.Email, config.Password = "", ""

	client, err := whoo.New(ctx, config)
	if err == nil {
		a.logger.Info().Msg("Using cached access token")
		return client, nil
	}
	if whoo.KindOf(err) != whoo.KindAuth {
		return nil, err
	}

	a.logger.Warn().Err(err).Msg("Cached token rejected, clearing it")
	if err := a.store.Clear(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to clear cached token")
	}
	return nil, nil
}
