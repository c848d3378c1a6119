package base

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dbsrv/rpc/common"
	"github.com/ValentinKolb/dbsrv/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
)

// authFailures counts connections dropped during the handshake
var authFailures = metrics.NewCounter("dbsrv_auth_failures_total")

// maxAcceptDelay caps the backoff after temporary accept errors
const maxAcceptDelay = time.Second

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector IServerConnector
	handler   transport.ServerHandleFunc
	config    common.ServerConfig
	listener  net.Listener
	ready     chan struct{}
	stopping  atomic.Bool
	stopOnce  sync.Once
	inFlight  sync.WaitGroup
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with the specified connector
func NewBaseServerTransport(connector IServerConnector) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
		ready:     make(chan struct{}),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Addr() net.Addr {
	select {
	case <-t.ready:
		return t.listener.Addr()
	default:
		return nil
	}
}

func (t *serverTransport) Ready() <-chan struct{} {
	return t.ready
}

func (t *serverTransport) Listen(ctx context.Context, config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	if config.AuthKey == "" {
		return fmt.Errorf("no authentication key configured")
	}
	t.config = config

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	t.listener = listener
	close(t.ready)

	workers := config.Workers
	if workers < 1 {
		workers = 1
	}

	Logger.Infof("Listening for %s connections on %s with %d worker(s)",
		t.connector.GetName(), listener.Addr(), workers)

	// Cancellation closes the listener, which ends the accept loop
	stopWatch := context.AfterFunc(ctx, func() {
		Logger.Infof("Shutdown requested, no longer accepting connections")
		t.stop()
	})
	defer stopWatch()

	// Counting semaphore for the worker pool, unused in serial mode
	semaphore := make(chan struct{}, workers)

	var (
		acceptDelay time.Duration
		acceptErr   error
	)
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.stopping.Load() {
				break
			}
			// closed without stop, retrying can not succeed
			if errors.Is(err, net.ErrClosed) {
				acceptErr = fmt.Errorf("listener closed unexpectedly: %w", err)
				Logger.Errorf("Accept failed permanently: %v", err)
				break
			}

			// Back off on temporary errors (e.g. too many open files)
			if acceptDelay == 0 {
				acceptDelay = 5 * time.Millisecond
			} else {
				acceptDelay = min(2*acceptDelay, maxAcceptDelay)
			}
			Logger.Errorf("Accept error: %v, retrying in %s", err, acceptDelay)
			time.Sleep(acceptDelay)
			continue
		}
		acceptDelay = 0

		if workers == 1 {
			// strictly serial: the next connection is accepted after this one was answered
			t.inFlight.Add(1)
			t.handleConnection(ctx, conn)
			continue
		}

		// Acquire a slot in the semaphore (blocks if all workers are busy)
		semaphore <- struct{}{}
		t.inFlight.Add(1)
		go func() {
			defer func() { <-semaphore }()
			t.handleConnection(ctx, conn)
		}()
	}

	// Wait for all in-flight requests before reporting the shutdown
	t.inFlight.Wait()
	Logger.Infof("Server on %s stopped", listener.Addr())
	return acceptErr
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// stop closes the listener exactly once
func (t *serverTransport) stop() {
	t.stopOnce.Do(func() {
		t.stopping.Store(true)
		if err := t.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			Logger.Warningf("Failed to close listener: %v", err)
		}
	})
}

// handleConnection authenticates the connection, reads exactly one request,
// passes it to the handler and writes the response. The connection is always closed.
func (t *serverTransport) handleConnection(ctx context.Context, conn net.Conn) {
	defer t.inFlight.Done()

	stop := false
	defer func() {
		_ = conn.Close()
		// the listener is closed after the stop acknowledgement was delivered
		if stop {
			t.stop()
		}
	}()

	remote := conn.RemoteAddr()
	ioTimeout := t.config.AuthTimeout()

	if err := t.connector.UpgradeConnection(conn); err != nil {
		Logger.Warningf("Failed to upgrade connection from %v: %v", remote, err)
	}

	// Handshake, unauthenticated peers are dropped without further notice
	if err := conn.SetDeadline(time.Now().Add(ioTimeout)); err != nil {
		Logger.Errorf("Failed to set handshake deadline: %v", err)
		return
	}
	if err := serverHandshake(conn, []byte(t.config.AuthKey)); err != nil {
		authFailures.Inc()
		Logger.Debugf("Dropped unauthenticated connection from %v: %v", remote, err)
		return
	}

	// Read the request
	if err := conn.SetReadDeadline(time.Now().Add(ioTimeout)); err != nil {
		Logger.Errorf("Failed to set read deadline: %v", err)
		return
	}
	req, err := readFrame(conn, t.config.MaxMessageSize())
	if err != nil {
		Logger.Errorf("Failed to read request from %v: %v", remote, err)
		return
	}

	// Process the request, the handler bounds its own execution time
	start := time.Now()
	var resp []byte
	resp, stop = t.handler(ctx, req)
	Logger.Debugf("Processed request from %v in %s", remote, time.Since(start))

	// Write the response
	if err := conn.SetWriteDeadline(time.Now().Add(ioTimeout)); err != nil {
		Logger.Errorf("Failed to set write deadline: %v", err)
		return
	}
	if err := writeFrame(conn, resp); err != nil {
		Logger.Errorf("Failed to write response to %v: %v", remote, err)
	}
}
