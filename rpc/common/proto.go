package common

import (
	"encoding/json"
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Protocol Constants
// --------------------------------------------------------------------------

const (
	// Version of the command protocol and the dbsrv binaries
	Version = "1.0.0"
	// StopCommand is the reserved command name that shuts the server down after acknowledging the caller.
	StopCommand = "@stop"
	// MethodPrefix marks a command as a method of the server state instead of a registered function.
	MethodPrefix = "."
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both commands and replies.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Command fields
	Name string `json:"name,omitempty"` // Name of the command, methods are prefixed with MethodPrefix
	Args []any  `json:"args,omitempty"` // Positional arguments, for methods the last one is the calculation id

	// Reply fields
	Result  any    `json:"result,omitempty"`   // Return value, or the failure description if ErrKind is set
	ErrKind string `json:"err_kind,omitempty"` // Empty if no error, otherwise the category of the failure
}

// IsStop reports whether the message is the stop sentinel
func (m *Message) IsStop() bool {
	return m.MsgType == MsgTCommand && m.Name == StopCommand
}

// IsMethod reports whether the message addresses a method of the server state
func (m *Message) IsMethod() bool {
	return strings.HasPrefix(m.Name, MethodPrefix)
}

// Validate checks that the message is a well-formed command
func (m *Message) Validate() error {
	if m.MsgType != MsgTCommand {
		return fmt.Errorf("expected a command, got a message of type %s", m.MsgType)
	}
	if m.Name == "" || m.Name == MethodPrefix {
		return fmt.Errorf("command name must not be empty")
	}
	return nil
}

// String returns a call-like representation of a command, e.g. `div(1, 0)`
func (m *Message) String() string {
	if m.MsgType == MsgTReply {
		return fmt.Sprintf("reply(%s, %q)", FormatValue(m.Result), m.ErrKind)
	}
	parts := make([]string, len(m.Args))
	for i, a := range m.Args {
		parts[i] = FormatValue(a)
	}
	return fmt.Sprintf("%s(%s)", m.Name, strings.Join(parts, ", "))
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewCommand creates a new function command. The arguments are normalized to
// the wire value set, an error is returned if one of them is not encodable.
func NewCommand(name string, args ...any) (*Message, error) {
	normalized, err := NormalizeArgs(args)
	if err != nil {
		return nil, fmt.Errorf("command %s: %w", name, err)
	}
	return &Message{
		MsgType: MsgTCommand,
		Name:    name,
		Args:    normalized,
	}, nil
}

// NewMethodCommand creates a new method command. The method prefix is added if missing
// and the calculation id is appended as last argument.
func NewMethodCommand(name string, calcID int64, args ...any) (*Message, error) {
	if !strings.HasPrefix(name, MethodPrefix) {
		name = MethodPrefix + name
	}
	return NewCommand(name, append(args[:len(args):len(args)], calcID)...)
}

// NewStopCommand creates the stop sentinel command
func NewStopCommand() *Message {
	return &Message{
		MsgType: MsgTCommand,
		Name:    StopCommand,
	}
}

// NewReply creates a reply. If errKind is set, result should describe the failure.
func NewReply(result any, errKind string) *Message {
	return &Message{
		MsgType: MsgTReply,
		Result:  result,
		ErrKind: errKind,
	}
}

// NewErrorReply creates a reply for a failure of the given kind
func NewErrorReply(errKind string, format string, args ...any) *Message {
	return NewReply(fmt.Sprintf(format, args...), errKind)
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTCommand:
		return "command"
	case MsgTReply:
		return "reply"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "command":
		*t = MsgTCommand
	case "reply":
		*t = MsgTReply
	case "unknown":
		*t = MsgTUnknown
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	MsgTUnknown MessageType = iota
	MsgTCommand             // A command sent from a client to the server
	MsgTReply               // The reply to a command
)
