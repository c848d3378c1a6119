package base

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dbsrv/rpc/common"
	"github.com/ValentinKolb/dbsrv/rpc/transport"
)

// --------------------------------------------------------------------------
// Test connector (plain tcp on the loopback interface)
// --------------------------------------------------------------------------

type testConnector struct{}

func (c *testConnector) GetName() string { return "test" }

func (c *testConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	return net.Listen("tcp", config.Endpoint)
}

func (c *testConnector) Connect(ctx context.Context, endpoint string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", endpoint)
}

func (c *testConnector) UpgradeConnection(conn net.Conn) error { return nil }

// startServer starts a server transport with the given handler and returns its address
// and a channel receiving the result of Listen
func startServer(t *testing.T, ctx context.Context, workers int, handler transport.ServerHandleFunc) (string, <-chan error) {
	t.Helper()

	srv := NewBaseServerTransport(&testConnector{})
	srv.RegisterHandler(handler)

	config := common.ServerConfig{
		Endpoint:          "127.0.0.1:0",
		AuthKey:           "secret",
		Workers:           workers,
		AuthTimeoutSecond: 2,
	}

	done := make(chan error, 1)
	go func() { done <- srv.Listen(ctx, config) }()

	select {
	case <-srv.Ready():
	case err := <-done:
		t.Fatalf("server failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not become ready")
	}
	return srv.Addr().String(), done
}

func newClient(t *testing.T, addr, key string) transport.IRPCClientTransport {
	t.Helper()
	c := NewBaseClientTransport(&testConnector{})
	if err := c.Connect(common.ClientConfig{Endpoint: addr, AuthKey: key, TimeoutSecond: 5}); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	return c
}

func waitStopped(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Listen returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}

// --------------------------------------------------------------------------
// Framing
// --------------------------------------------------------------------------

// TestFrameRoundTrip tests writing and reading frames
func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{[]byte("hello"), {}, bytes.Repeat([]byte{0xab}, 4096)}

	for _, p := range payloads {
		if err := writeFrame(&buf, p); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	for i, p := range payloads {
		got, err := readFrame(&buf, 1<<20)
		if err != nil {
			t.Fatalf("read %d failed: %v", i, err)
		}
		if !bytes.Equal(got, p) {
			t.Errorf("frame %d mismatch: got %d bytes, want %d", i, len(got), len(p))
		}
	}

	if _, err := readFrame(&buf, 1<<20); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF on empty reader, got %v", err)
	}
}

// TestFrameLimits tests the rejection of oversized and truncated frames
func TestFrameLimits(t *testing.T) {
	var buf bytes.Buffer
	_ = writeFrame(&buf, make([]byte, 100))
	if _, err := readFrame(&buf, 99); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}

	truncated := []byte{0, 0, 0, 10, 'a', 'b'}
	if _, err := readFrame(bytes.NewReader(truncated), 100); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected ErrUnexpectedEOF, got %v", err)
	}
}

// --------------------------------------------------------------------------
// Handshake
// --------------------------------------------------------------------------

func runHandshake(serverKey, clientKey string) (serverErr, clientErr error) {
	s, c := net.Pipe()
	defer s.Close()
	defer c.Close()
	_ = s.SetDeadline(time.Now().Add(2 * time.Second))
	_ = c.SetDeadline(time.Now().Add(2 * time.Second))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		serverErr = serverHandshake(s, []byte(serverKey))
		if serverErr != nil {
			s.Close()
		}
	}()
	clientErr = clientHandshake(c, []byte(clientKey))
	if clientErr != nil {
		c.Close()
	}
	wg.Wait()
	return serverErr, clientErr
}

// TestHandshake tests the mutual challenge/response authentication
func TestHandshake(t *testing.T) {
	serverErr, clientErr := runHandshake("secret", "secret")
	if serverErr != nil || clientErr != nil {
		t.Fatalf("handshake with matching keys failed: server=%v client=%v", serverErr, clientErr)
	}

	serverErr, clientErr = runHandshake("secret", "wrong")
	if !errors.Is(serverErr, ErrAuthFailed) {
		t.Errorf("server should reject the client, got %v", serverErr)
	}
	if !errors.Is(clientErr, ErrAuthFailed) {
		t.Errorf("client should be rejected, got %v", clientErr)
	}
}

// TestSignatureRoles tests that client and server signatures differ
func TestSignatureRoles(t *testing.T) {
	challenge := bytes.Repeat([]byte{1}, challengeSize)
	if bytes.Equal(sign([]byte("k"), roleClient, challenge), sign([]byte("k"), roleServer, challenge)) {
		t.Errorf("signatures of both roles must differ")
	}
}

// --------------------------------------------------------------------------
// Server and client transport
// --------------------------------------------------------------------------

// TestRequestResponse tests a full exchange and the stop request
func TestRequestResponse(t *testing.T) {
	var calls atomic.Int32
	addr, done := startServer(t, context.Background(), 1, func(ctx context.Context, req []byte) ([]byte, bool) {
		calls.Add(1)
		return append([]byte("echo:"), req...), string(req) == "stop"
	})

	client := newClient(t, addr, "secret")
	defer client.Close()

	for _, msg := range []string{"hello", "world"} {
		resp, err := client.Send(context.Background(), []byte(msg))
		if err != nil {
			t.Fatalf("send failed: %v", err)
		}
		if string(resp) != "echo:"+msg {
			t.Errorf("unexpected response %q", resp)
		}
	}

	// the stop request is acknowledged before the listener closes
	resp, err := client.Send(context.Background(), []byte("stop"))
	if err != nil || string(resp) != "echo:stop" {
		t.Fatalf("stop not acknowledged: %q, %v", resp, err)
	}
	waitStopped(t, done)

	if _, err := client.Send(context.Background(), []byte("late")); err == nil {
		t.Errorf("expected error after stop")
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 handler calls, got %d", calls.Load())
	}
}

// TestUnauthenticatedIgnored tests that bad keys and probes never reach the handler
func TestUnauthenticatedIgnored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	addr, done := startServer(t, ctx, 1, func(ctx context.Context, req []byte) ([]byte, bool) {
		calls.Add(1)
		return req, false
	})

	before := authFailures.Get()

	// wrong key
	bad := newClient(t, addr, "wrong")
	if _, err := bad.Send(context.Background(), []byte("x")); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}

	// port probe sending garbage
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	_, _ = conn.Write([]byte("GET / HTTP/1.0\r\n\r\n"))
	_, _ = io.ReadAll(conn) // challenge, then the server closes
	conn.Close()

	// the server keeps serving
	good := newClient(t, addr, "secret")
	if resp, err := good.Send(context.Background(), []byte("ok")); err != nil || string(resp) != "ok" {
		t.Fatalf("authenticated request failed: %q, %v", resp, err)
	}

	if calls.Load() != 1 {
		t.Errorf("handler must only see the authenticated request, got %d calls", calls.Load())
	}
	if got := authFailures.Get() - before; got != 2 {
		t.Errorf("expected 2 authentication failures, got %d", got)
	}

	cancel()
	waitStopped(t, done)
}

// TestContextCancel tests the shutdown by context cancellation
func TestContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, done := startServer(t, ctx, 1, func(ctx context.Context, req []byte) ([]byte, bool) {
		return req, false
	})
	cancel()
	waitStopped(t, done)
}

// TestWorkerPool tests that requests run concurrently if more than one worker is configured
func TestWorkerPool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var active, peak atomic.Int32
	release := make(chan struct{})
	addr, done := startServer(t, ctx, 2, func(ctx context.Context, req []byte) ([]byte, bool) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		active.Add(-1)
		return req, false
	})

	client := newClient(t, addr, "secret")
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Send(context.Background(), []byte("x")); err != nil {
				t.Errorf("send failed: %v", err)
			}
		}()
	}

	// wait until both requests are inside the handler
	deadline := time.Now().Add(5 * time.Second)
	for peak.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	close(release)
	wg.Wait()

	if peak.Load() != 2 {
		t.Errorf("expected 2 concurrent requests, got %d", peak.Load())
	}

	cancel()
	waitStopped(t, done)
}

// TestDialRetry tests that dialing a missing server fails after the retries
func TestDialRetry(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	c := NewBaseClientTransport(&testConnector{})
	_ = c.Connect(common.ClientConfig{Endpoint: addr, AuthKey: "secret", RetryCount: 2, TimeoutSecond: 5})
	if _, err := c.Send(context.Background(), []byte("x")); err == nil {
		t.Errorf("expected dial error")
	}
}

// closingConnector remembers its listener so a test can close it behind the server's back
type closingConnector struct {
	testConnector
	listener chan net.Listener
}

func (c *closingConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	l, err := c.testConnector.Listen(config)
	if err == nil {
		c.listener <- l
	}
	return l, err
}

// TestListenerClosedExternally tests that Listen returns instead of retrying a closed listener
func TestListenerClosedExternally(t *testing.T) {
	connector := &closingConnector{listener: make(chan net.Listener, 1)}
	srv := NewBaseServerTransport(connector)
	srv.RegisterHandler(func(context.Context, []byte) ([]byte, bool) { return nil, false })

	done := make(chan error, 1)
	go func() {
		done <- srv.Listen(context.Background(), common.ServerConfig{Endpoint: "127.0.0.1:0", AuthKey: "secret"})
	}()

	select {
	case l := <-connector.listener:
		_ = l.Close()
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not start")
	}

	select {
	case err := <-done:
		if !errors.Is(err, net.ErrClosed) {
			t.Errorf("expected an error wrapping net.ErrClosed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Listen kept retrying on a closed listener")
	}
}
