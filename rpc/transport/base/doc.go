// Package base provides the protocol-agnostic core of the command transport.
// It implements framing, the shared-secret handshake and the accept loop once,
// the sub packages tcp and unix only contribute a connector.
//
// Wire format:
//
//   - Every frame is a 4 byte big-endian length followed by the payload. Frames
//     above the configured maximum are rejected before the payload is read.
//
//   - A connection starts with a mutual handshake: the server sends 32 random bytes,
//     the client answers with HMAC-SHA256(secret, role || challenge), the server
//     replies with a one byte welcome/failure frame, then the client challenges the
//     server the same way. Peers failing the handshake are closed without a reply.
//
//   - After the handshake exactly one request frame and one response frame are
//     exchanged and the connection is closed.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - clientTransport: Dials a new connection per request. Dialing is retried with
//     exponential backoff, a request that reached the server is never re-sent.
//
//   - serverTransport: Accepts connections either strictly one after another
//     (Workers = 1) or with a bounded pool of goroutines. The listener is closed
//     when the handler requests a stop or the context is cancelled.
//
// Thread Safety:
//
//	The server transport is safe for use by a single Listen call. The client
//	transport may be shared by goroutines once Connect returned.
package base
