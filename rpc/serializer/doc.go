// Package serializer provides message serialization for the command server.
// It defines a common interface and multiple implementations for encoding
// commands and replies between client and server.
//
// Every implementation round-trips the wire value set defined in the common
// package: nil, bool, int64, float64, string, []byte, []any and map[string]any.
// Integers and floats stay distinct, empty containers stay empty and nesting is
// limited to 64 levels. Malformed input results in an error, never a panic.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom tagged binary format. A flag byte marks the
//     present message fields, every value is prefixed with a one byte type tag.
//     Map keys are written in sorted order so the encoding is deterministic.
//
//   - jsonSerializerImpl: JSON encoding with typed value envelopes, useful for
//     debugging or for clients written in other languages. Strings and map keys
//     that are not valid UTF-8 are sent base64 encoded ("str64", "map64").
//
//   - gobSerializerImpl: Go's gob encoding of the message envelope, arguments and
//     result use the tagged value encoding of the binary format so the nesting
//     limit applies. Only useful between Go programs.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s, ok := serializer.New("binary")
//	data, err := s.Serialize(message)
//	// ... send data ...
//	var received common.Message
//	err = s.Deserialize(receivedData, &received)
package serializer
