package relay

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the local relay address.
	DefaultBaseURL = "http://localhost:3001"

	// DefaultTimeout bounds a single relay request.
	DefaultTimeout = 30 * time.Second

	// DefaultModel is the speech recognition model requested from the relay.
	DefaultModel = "base"

	// DefaultLanguage is the speech recognition language hint.
	DefaultLanguage = "ms"
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the relay base URL. Useful for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSessionID sets the conversation session identifier sent with
// forwarded messages.
func WithSessionID(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

// WithModel sets the speech recognition model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithLanguage sets the speech recognition language hint.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}
