package base

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

// frameHeaderSize is the size of the length prefix of a frame
const frameHeaderSize = 4

// ErrFrameTooLarge is returned if the peer announces a frame above the configured limit
var ErrFrameTooLarge = errors.New("frame too large")

// writeFrame writes a frame to the writer with the format:
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(w io.Writer, data []byte) error {
	if uint64(len(data)) > uint64(^uint32(0)) {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}

	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint32(header, uint32(len(data)))

	// one write for header and payload
	b := net.Buffers{header, data}
	_, err := b.WriteTo(w)
	return err
}

// readFrame reads a frame from the reader. Frames announcing more than maxSize bytes
// are rejected before any payload is read.
func readFrame(r io.Reader, maxSize int) ([]byte, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	contentLength := binary.BigEndian.Uint32(header)
	if maxSize > 0 && uint64(contentLength) > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFrameTooLarge, contentLength, maxSize)
	}

	// If no data, return empty slice
	if contentLength == 0 {
		return []byte{}, nil
	}

	data := make([]byte, contentLength)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return data, nil
}
