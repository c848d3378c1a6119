package base

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

const (
	// challengeSize is the number of random bytes each side has to sign
	challengeSize = 32
	// maxHandshakeFrame bounds every frame read during the handshake
	maxHandshakeFrame = 64
)

// handshake result sent by the server after checking the client signature
var (
	welcome = []byte{1}
	failure = []byte{0}
)

// roles are mixed into the signature so a signature can not be reflected to the other side
const (
	roleClient = "dbsrv-client"
	roleServer = "dbsrv-server"
)

// ErrAuthFailed is returned if the peer did not prove knowledge of the shared secret
var ErrAuthFailed = errors.New("authentication failed")

// sign computes the HMAC-SHA256 of the challenge for the given role
func sign(key []byte, role string, challenge []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(role))
	mac.Write(challenge)
	return mac.Sum(nil)
}

func newChallenge() ([]byte, error) {
	challenge := make([]byte, challengeSize)
	if _, err := rand.Read(challenge); err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}
	return challenge, nil
}

// serverHandshake authenticates the client and then proves the server identity.
// The caller is responsible for deadlines on rw.
func serverHandshake(rw io.ReadWriter, key []byte) error {
	// challenge the client
	challenge, err := newChallenge()
	if err != nil {
		return err
	}
	if err := writeFrame(rw, challenge); err != nil {
		return err
	}

	answer, err := readFrame(rw, maxHandshakeFrame)
	if err != nil {
		return err
	}
	if !hmac.Equal(answer, sign(key, roleClient, challenge)) {
		_ = writeFrame(rw, failure)
		return ErrAuthFailed
	}
	if err := writeFrame(rw, welcome); err != nil {
		return err
	}

	// answer the challenge of the client
	clientChallenge, err := readFrame(rw, maxHandshakeFrame)
	if err != nil {
		return err
	}
	if len(clientChallenge) != challengeSize {
		return fmt.Errorf("%w: malformed client challenge", ErrAuthFailed)
	}
	return writeFrame(rw, sign(key, roleServer, clientChallenge))
}

// clientHandshake answers the server challenge and then verifies the server identity.
// The caller is responsible for deadlines on rw.
func clientHandshake(rw io.ReadWriter, key []byte) error {
	challenge, err := readFrame(rw, maxHandshakeFrame)
	if err != nil {
		return err
	}
	if len(challenge) != challengeSize {
		return fmt.Errorf("%w: malformed server challenge", ErrAuthFailed)
	}
	if err := writeFrame(rw, sign(key, roleClient, challenge)); err != nil {
		return err
	}

	result, err := readFrame(rw, maxHandshakeFrame)
	if err != nil {
		return err
	}
	if !hmac.Equal(result, welcome) {
		return fmt.Errorf("%w: rejected by server", ErrAuthFailed)
	}

	// challenge the server
	ownChallenge, err := newChallenge()
	if err != nil {
		return err
	}
	if err := writeFrame(rw, ownChallenge); err != nil {
		return err
	}
	answer, err := readFrame(rw, maxHandshakeFrame)
	if err != nil {
		return err
	}
	if !hmac.Equal(answer, sign(key, roleServer, ownChallenge)) {
		return fmt.Errorf("%w: server could not prove its identity", ErrAuthFailed)
	}
	return nil
}
