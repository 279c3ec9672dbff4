package whoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/benmeehan/whoo-agent/pkg/transport"
)

const (
	// DefaultBaseURL is the production API host.
	DefaultBaseURL = "https://www.wh00.ooo"
	// DefaultUserAgent identifies the client the way the iOS app does.
	DefaultUserAgent = "app.whoo/0.13.4 iOS/17.0"
	// DefaultLanguage is sent as Accept-Language.
	DefaultLanguage = "ja-JP"
	// DefaultTimeout bounds each request.
	DefaultTimeout = 30 * time.Second
)

// Config holds the settings for creating a Client. Only one of AccessToken
// and Email/Password is used; AccessToken wins when both are set.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration
	// HTTPClient performs requests. If nil, a dedicated pooled client is used.
	HTTPClient *http.Client
	// Logger receives debug events. If nil, nothing is logged.
	Logger *zerolog.Logger

	// UserAgent defaults to DefaultUserAgent.
	UserAgent string
	// Language defaults to DefaultLanguage.
	Language string

	// AccessToken is a previously issued bearer token.
	AccessToken string
	// SkipTokenCheck disables the /api/my request that validates AccessToken.
	SkipTokenCheck bool
	// Email and Password are exchanged for a token when AccessToken is empty.
	Email    string
	Password string

	// Confirmer approves DeleteAccount. Defaults to a prompt on stdin/stdout.
	Confirmer Confirmer
}

// Client is the facade over every resource service. The embedded services'
// methods are available directly on Client.
//
// A Client is immutable after construction and safe for concurrent use.
type Client struct {
	*LocationService
	*UserService
	*AccountService
	*MessageService
	*PresenceService

	base      *transport.Transport // unauthenticated transport
	transport *transport.Transport
	token     string
	confirmer Confirmer
	logger    zerolog.Logger
}

// New creates a Client and authenticates it according to config.
func New(ctx context.Context, config Config) (*Client, error) {
	base, err := newTransport(config)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	confirmer := config.Confirmer
	if confirmer == nil {
		confirmer = PromptConfirmer{In: os.Stdin, Out: os.Stdout}
	}

	client := newClient(base, base, "", confirmer, logger)

	switch {
	case config.AccessToken != "":
		authenticated := client.withToken(config.AccessToken)
		if !config.SkipTokenCheck {
			if err := authenticated.verifyToken(ctx); err != nil {
				return nil, err
			}
		}
		logger.Info().Msg("Authenticated with access token")
		return authenticated, nil

	case config.Email != "" || config.Password != "":
		if config.Email == "" || config.Password == "" {
			return nil, &ValidationError{Op: "login", Reason: "email and password must be given together"}
		}
		return client.Login(ctx, config.Email, config.Password)

	default:
		return client, nil
	}
}

func newTransport(config Config) (*transport.Transport, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	language := config.Language
	if language == "" {
		language = DefaultLanguage
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("User-Agent", userAgent)
	header.Set("Accept-Language", language)
	header.Set("Accept-Encoding", transport.AcceptEncoding)

	t, err := transport.New(transport.Config{
		BaseURL:    baseURL,
		Timeout:    timeout,
		Header:     header,
		HTTPClient: config.HTTPClient,
		Logger:     config.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("whoo: %w", err)
	}
	return t, nil
}

func newClient(base, t *transport.Transport, token string, confirmer Confirmer, logger zerolog.Logger) *Client {
	return &Client{
		LocationService: &LocationService{transport: t},
		UserService:     &UserService{transport: t},
		AccountService:  &AccountService{transport: t, confirmer: confirmer, logger: logger},
		MessageService:  &MessageService{transport: t},
		PresenceService: &PresenceService{transport: t},
		base:            base,
		transport:       t,
		token:           token,
		confirmer:       confirmer,
		logger:          logger,
	}
}

// withToken returns a new Client whose requests carry token.
func (c *Client) withToken(token string) *Client {
	return newClient(c.base, c.base.WithToken(token), token, c.confirmer, c.logger)
}

// verifyToken checks the token against the current-user endpoint.
func (c *Client) verifyToken(ctx context.Context) error {
	_, err := c.transport.Do(ctx, transport.Request{Op: "verify token", Method: http.MethodGet, Path: "/api/my"})
	if err == nil {
		return nil
	}
	if transport.IsStatus(err, http.StatusUnauthorized) || transport.IsStatus(err, http.StatusForbidden) {
		return &AuthError{Op: "verify token", Err: err}
	}
	return err
}

// Login exchanges email and password for a token and returns a new Client
// using it. The receiver is not modified.
func (c *Client) Login(ctx context.Context, email, password string) (*Client, error) {
	if email == "" || password == "" {
		return nil, &ValidationError{Op: "login", Reason: "email and password are required"}
	}

	response, err := c.base.Do(ctx, transport.Request{
		Op:     "email login",
		Method: http.MethodPost,
		Path:   "/api/email/login",
		Form:   formOf("email", email, "password", password),
	})
	if err != nil {
		// Network failures stay TransportErrors; only a refused login is an AuthError.
		var transportErr *TransportError
		if errors.As(err, &transportErr) {
			return nil, err
		}
		return nil, &AuthError{Op: "email login", Err: err}
	}

	body, err := response.Object()
	if err != nil {
		return nil, &AuthError{Op: "email login", Err: err}
	}
	token := Record(body).Text("access_token")
	if token == "" {
		return nil, &AuthError{Op: "email login", Err: ErrNoAccessToken}
	}

	c.logger.Info().Msg("Logged in with email and password")
	return c.withToken(token), nil
}

// AccessToken returns the bearer token, or "" for an unauthenticated client.
func (c *Client) AccessToken() string {
	return c.token
}

// Authenticated reports whether the client holds a token.
func (c *Client) Authenticated() bool {
	return c.transport.Authenticated()
}

// Close releases idle pooled connections.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

// requireToken fails before any I/O when t carries no bearer token.
func requireToken(t *transport.Transport, op string) error {
	if !t.Authenticated() {
		return &AuthError{Op: op, Err: ErrTokenRequired}
	}
	return nil
}

// recordOf decodes an object body; an empty body yields an empty Record.
func recordOf(response *transport.Response) (Record, error) {
	if len(response.Body) == 0 {
		return Record{}, nil
	}
	object, err := response.Object()
	if err != nil {
		return nil, err
	}
	return Record(object), nil
}
