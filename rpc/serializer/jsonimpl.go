package serializer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/ValentinKolb/dbsrv/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding.
// Values are wrapped in typed envelopes ({"t":"int","v":"42"}) because plain JSON
// numbers would not tell integers and floats apart.
type jsonSerializerImpl struct {
}

// jsonMessage is the wire shape of a common.Message
type jsonMessage struct {
	MsgType common.MessageType `json:"msg_type"`
	Name    string             `json:"name,omitempty"`
	Args    []jsonValue        `json:"args,omitempty"`
	Result  *jsonValue         `json:"result,omitempty"`
	ErrKind string             `json:"err_kind,omitempty"`
}

// jsonValue is a typed envelope of a single value
type jsonValue struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v,omitempty"`
}

// jsonEntry is a map entry of a "map64" envelope. The key is base64 encoded
// because it is not valid UTF-8.
type jsonEntry struct {
	K []byte    `json:"k"`
	V jsonValue `json:"v"`
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// json would replace invalid UTF-8 with U+FFFD
	if !utf8.ValidString(msg.Name) || !utf8.ValidString(msg.ErrKind) {
		return nil, fmt.Errorf("command name and error kind must be valid UTF-8")
	}

	wire := jsonMessage{
		MsgType: msg.MsgType,
		Name:    msg.Name,
		ErrKind: msg.ErrKind,
	}

	for i, arg := range msg.Args {
		v, err := toJSONValue(arg, 0)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		wire.Args = append(wire.Args, v)
	}

	if msg.Result != nil {
		v, err := toJSONValue(msg.Result, 0)
		if err != nil {
			return nil, fmt.Errorf("result: %w", err)
		}
		wire.Result = &v
	}

	return json.Marshal(wire)
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	var wire jsonMessage
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}

	*msg = common.Message{
		MsgType: wire.MsgType,
		Name:    wire.Name,
		ErrKind: wire.ErrKind,
	}

	if len(wire.Args) > 0 {
		msg.Args = make([]any, len(wire.Args))
		for i, v := range wire.Args {
			arg, err := fromJSONValue(v, 0)
			if err != nil {
				return fmt.Errorf("argument %d: %w", i, err)
			}
			msg.Args[i] = arg
		}
	}

	if wire.Result != nil {
		res, err := fromJSONValue(*wire.Result, 0)
		if err != nil {
			return fmt.Errorf("result: %w", err)
		}
		msg.Result = res
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// toJSONValue wraps a value into its typed envelope
func toJSONValue(v any, depth int) (jsonValue, error) {
	if depth > maxDepth {
		return jsonValue{}, fmt.Errorf("value nested deeper than %d levels", maxDepth)
	}

	var (
		t   string
		raw any
	)
	switch x := v.(type) {
	case nil:
		return jsonValue{T: "nil"}, nil
	case bool:
		t, raw = "bool", x
	case int64:
		// as string, json numbers lose precision beyond 2^53 in many decoders
		t, raw = "int", strconv.FormatInt(x, 10)
	case float64:
		t, raw = "float", x
	case string:
		if utf8.ValidString(x) {
			t, raw = "str", x
		} else {
			t, raw = "str64", []byte(x)
		}
	case []byte:
		t, raw = "bytes", x
	case []any:
		list := make([]jsonValue, len(x))
		for i, e := range x {
			ev, err := toJSONValue(e, depth+1)
			if err != nil {
				return jsonValue{}, err
			}
			list[i] = ev
		}
		t, raw = "list", list
	case map[string]any:
		m := make(map[string]jsonValue, len(x))
		entries := make([]jsonEntry, 0, len(x))
		binaryKeys := false
		for k, e := range x {
			ev, err := toJSONValue(e, depth+1)
			if err != nil {
				return jsonValue{}, err
			}
			m[k] = ev
			entries = append(entries, jsonEntry{K: []byte(k), V: ev})
			binaryKeys = binaryKeys || !utf8.ValidString(k)
		}
		if binaryKeys {
			t, raw = "map64", entries
		} else {
			t, raw = "map", m
		}
	default:
		n, err := common.Normalize(v)
		if err != nil {
			return jsonValue{}, err
		}
		return toJSONValue(n, depth)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return jsonValue{}, err
	}
	return jsonValue{T: t, V: data}, nil
}

// fromJSONValue unwraps a typed envelope
func fromJSONValue(v jsonValue, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("value nested deeper than %d levels", maxDepth)
	}

	switch v.T {
	case "nil":
		return nil, nil
	case "bool":
		var b bool
		err := strictUnmarshal(v.V, &b)
		return b, err
	case "int":
		var s string
		if err := strictUnmarshal(v.V, &s); err != nil {
			return nil, err
		}
		return strconv.ParseInt(s, 10, 64)
	case "float":
		var f float64
		err := strictUnmarshal(v.V, &f)
		return f, err
	case "str":
		var s string
		err := strictUnmarshal(v.V, &s)
		return s, err
	case "str64":
		var b []byte
		err := strictUnmarshal(v.V, &b)
		return string(b), err
	case "bytes":
		var b []byte
		if err := strictUnmarshal(v.V, &b); err != nil {
			return nil, err
		}
		if b == nil {
			b = []byte{}
		}
		return b, nil
	case "list":
		var raw []jsonValue
		if err := strictUnmarshal(v.V, &raw); err != nil {
			return nil, err
		}
		list := make([]any, len(raw))
		for i, e := range raw {
			ev, err := fromJSONValue(e, depth+1)
			if err != nil {
				return nil, err
			}
			list[i] = ev
		}
		return list, nil
	case "map":
		var raw map[string]jsonValue
		if err := strictUnmarshal(v.V, &raw); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(raw))
		for k, e := range raw {
			ev, err := fromJSONValue(e, depth+1)
			if err != nil {
				return nil, err
			}
			m[k] = ev
		}
		return m, nil
	case "map64":
		var raw []jsonEntry
		if err := strictUnmarshal(v.V, &raw); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(raw))
		for _, e := range raw {
			ev, err := fromJSONValue(e.V, depth+1)
			if err != nil {
				return nil, err
			}
			m[string(e.K)] = ev
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown value type %q", v.T)
	}
}

// strictUnmarshal rejects missing payloads instead of silently returning zero values
func strictUnmarshal(data json.RawMessage, target any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("missing value")
	}
	return json.Unmarshal(data, target)
}
