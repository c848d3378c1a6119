package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate = validator.New()

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultAuthTimeoutSecond = 5
	DefaultMaxMessageBytes   = 64 * 1024 * 1024 // 64 MB
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeBadger StoreType = "badger"
)

// StoreConfig selects the backend database mediated by the server
type StoreConfig struct {
	Type    StoreType `validate:"oneof=memory badger"`
	DataDir string    `validate:"required_if=Type badger"`
}

// ServerConfig holds all configuration parameters of the command server.
// It is read once at startup and must not change while the server runs.
type ServerConfig struct {
	// Server identity
	Endpoint string `validate:"required"`
	AuthKey  string `validate:"required"`

	// TimeoutSecond bounds the execution of a single command (0 = no deadline)
	TimeoutSecond int64 `validate:"gte=0"`
	// AuthTimeoutSecond bounds the authentication handshake of a connection
	AuthTimeoutSecond int64 `validate:"gte=0"`
	// Workers is the number of commands executed concurrently (1 = strictly serial)
	Workers int `validate:"gte=1"`
	// MaxMessageBytes is the largest frame accepted from a client (0 = default)
	MaxMessageBytes int `validate:"gte=0"`

	// Backend
	Store StoreConfig

	// Prometheus metrics endpoint (empty = disabled)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string `validate:"oneof=debug info warn warning error"`
}

// Validate validates the configuration using struct tags
func (c *ServerConfig) Validate() error {
	return formatValidationError(validate.Struct(c))
}

// CallTimeout returns the per-command deadline (0 = none)
func (c *ServerConfig) CallTimeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// AuthTimeout returns the handshake deadline
func (c *ServerConfig) AuthTimeout() time.Duration {
	if c.AuthTimeoutSecond <= 0 {
		return DefaultAuthTimeoutSecond * time.Second
	}
	return time.Duration(c.AuthTimeoutSecond) * time.Second
}

// MaxMessageSize returns the maximum frame size
func (c *ServerConfig) MaxMessageSize() int {
	if c.MaxMessageBytes <= 0 {
		return DefaultMaxMessageBytes
	}
	return c.MaxMessageBytes
}

// String returns a formatted string representation of the configuration.
// The authentication key is never printed.
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Auth Key", mask(c.AuthKey))
	addField("Call Timeout", formatSeconds(c.TimeoutSecond))
	addField("Auth Timeout", c.AuthTimeout().String())
	addField("Workers", strconv.Itoa(c.Workers))
	addField("Max Message Size", fmt.Sprintf("%d bytes", c.MaxMessageSize()))

	// Backend
	addSection("Store")
	addField("Type", string(c.Store.Type))
	if c.Store.Type == StoreTypeBadger {
		addField("Data Directory", c.Store.DataDir)
	}

	// Observability
	addSection("Logging")
	addField("Log Level", c.LogLevel)
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoint        string `validate:"required"`
	AuthKey         string `validate:"required"`
	TimeoutSecond   int    `validate:"gte=0"`
	RetryCount      int    `validate:"gte=0"`
	MaxMessageBytes int    `validate:"gte=0"`
}

// Validate validates the configuration using struct tags
func (c *ClientConfig) Validate() error {
	return formatValidationError(validate.Struct(c))
}

// Timeout returns the deadline of one call (0 = none)
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// MaxMessageSize returns the maximum frame size
func (c *ClientConfig) MaxMessageSize() int {
	if c.MaxMessageBytes <= 0 {
		return DefaultMaxMessageBytes
	}
	return c.MaxMessageBytes
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Auth Key", mask(c.AuthKey))
	addField("Timeout", formatSeconds(int64(c.TimeoutSecond)))
	addField("Retry Count", strconv.Itoa(c.RetryCount))

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}

func mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	return strings.Repeat("*", 8)
}

func formatSeconds(sec int64) string {
	if sec <= 0 {
		return "none"
	}
	return fmt.Sprintf("%d sec", sec)
}
