package types

import "time"

// DefaultBaseURL is the API address used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8000"

// ClientConfig holds settings for the ManuWeaver API client.
type ClientConfig struct {
	// BaseURL is the root of the API (e.g. "http://localhost:8000").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Timeout bounds each JSON request. Streaming connections are not
	// subject to it; they last until the server ends them or the caller
	// cancels.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with every request
	// (e.g. "manuweaver/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// ReadRetries is the number of retries for read-only requests that
	// receive HTTP 429. Zero disables retries. Workflow actions are never
	// retried.
	ReadRetries int `json:"read_retries" yaml:"read_retries"`

	// Token is an optional bearer credential forwarded to the server.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

// SessionConfig holds settings for the local session journal.
type SessionConfig struct {
	// Path is the SQLite database file. Empty disables the journal.
	Path string `json:"path" yaml:"path"`
}

// Config groups the client configuration.
type Config struct {
	Client  ClientConfig  `json:"client" yaml:"client"`
	Session SessionConfig `json:"session" yaml:"session"`
}
