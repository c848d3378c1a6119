package base

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/ValentinKolb/dbsrv/rpc/common"
	"github.com/ValentinKolb/dbsrv/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.).
// Every request uses a fresh connection, so the transport holds no connection state.
type clientTransport struct {
	connector IClientConnector
	config    common.ClientConfig
	connected bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if config.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}
	if config.AuthKey == "" {
		return fmt.Errorf("no authentication key provided")
	}

	t.config = config
	t.connected = true
	Logger.Debugf("Using %s transport for %s", t.connector.GetName(), config.Endpoint)
	return nil
}

func (t *clientTransport) Send(ctx context.Context, req []byte) ([]byte, error) {
	if !t.connected {
		return nil, fmt.Errorf("transport is not connected")
	}
	if maxSize := t.config.MaxMessageSize(); len(req) > maxSize {
		return nil, fmt.Errorf("%w: request of %d bytes exceeds limit of %d", ErrFrameTooLarge, len(req), maxSize)
	}

	// Bound the whole exchange by the configured timeout
	if timeout := t.config.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Abort blocking reads and writes once the context is done
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stopWatch := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stopWatch()

	resp, err := t.exchange(conn, req)
	if err != nil {
		// report the context error so callers can tell timeouts apart
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("request to %s aborted: %w", t.config.Endpoint, ctxErr)
		}
		return nil, err
	}
	return resp, nil
}

func (t *clientTransport) Close() error {
	t.connected = false
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// dial connects to the endpoint. Only dialing is retried, a request that was
// sent is never sent again.
func (t *clientTransport) dial(ctx context.Context) (net.Conn, error) {
	// We always try at least once
	attempts := t.config.RetryCount + 1

	// Initial backoff duration in milliseconds
	backoffMs := 50

	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, err := t.connector.Connect(ctx, t.config.Endpoint)
		if err == nil {
			if err := t.connector.UpgradeConnection(conn); err != nil {
				Logger.Warningf("Failed to upgrade connection to %s: %v", t.config.Endpoint, err)
			}
			return conn, nil
		}

		lastErr = err
		Logger.Debugf("Dial attempt %d/%d to %s failed: %v", i+1, attempts, t.config.Endpoint, err)

		if i < attempts-1 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			select {
			case <-time.After(time.Duration(jitter) * time.Millisecond):
			case <-ctx.Done():
				return nil, fmt.Errorf("failed to connect to %s: %w", t.config.Endpoint, ctx.Err())
			}
			backoffMs *= 2
		}
	}

	return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", t.config.Endpoint, attempts, lastErr)
}

// exchange authenticates the connection, writes the request and reads the response
func (t *clientTransport) exchange(conn net.Conn, req []byte) ([]byte, error) {
	if err := clientHandshake(conn, []byte(t.config.AuthKey)); err != nil {
		if errors.Is(err, ErrAuthFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: handshake with %s failed: %v", ErrAuthFailed, t.config.Endpoint, err)
	}

	if err := writeFrame(conn, req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	resp, err := readFrame(conn, t.config.MaxMessageSize())
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, nil
}
