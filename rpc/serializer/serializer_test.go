package serializer

import (
	"bytes"
	"encoding/gob"
	"math"
	"reflect"
	"testing"

	"github.com/ValentinKolb/dbsrv/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages covering the whole value set
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTReply},

		// Command without arguments
		{MsgType: common.MsgTCommand, Name: "ping"},

		// Stop sentinel
		*common.NewStopCommand(),

		// Command with scalar arguments
		{
			MsgType: common.MsgTCommand,
			Name:    "sum",
			Args:    []any{int64(1), int64(-2), 2.5, true, false, nil, "text"},
		},

		// Method command, last argument is the calculation id
		{
			MsgType: common.MsgTCommand,
			Name:    ".foo",
			Args:    []any{int64(1), int64(2), int64(42)},
		},

		// Integer and float of the same numeric value must stay distinct
		{
			MsgType: common.MsgTCommand,
			Name:    "echo",
			Args:    []any{int64(3), float64(3), int64(math.MaxInt64), int64(math.MinInt64)},
		},

		// Nested containers and bytes
		{
			MsgType: common.MsgTCommand,
			Name:    "echo",
			Args: []any{
				[]byte("raw\x00bytes"),
				[]any{int64(1), []any{"a", nil}, map[string]any{"k": 1.5}},
				map[string]any{"list": []any{true}, "nil": nil, "str": "v"},
			},
		},

		// Strings and map keys that are not valid UTF-8
		{
			MsgType: common.MsgTCommand,
			Name:    "echo",
			Args:    []any{"\xff\xfeabc", map[string]any{"\xff": int64(1), "ok": "\xc3"}},
		},

		// Success reply
		{MsgType: common.MsgTReply, Result: map[string]any{"id": int64(7), "status": "created"}},

		// Error reply
		{
			MsgType: common.MsgTReply,
			Result:  "div(1, 0): integer divide by zero",
			ErrKind: common.ErrKindArithmetic,
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestEmptyContainers tests that empty bytes, lists and maps are not turned into nil
func TestEmptyContainers(t *testing.T) {
	msg := common.Message{
		MsgType: common.MsgTCommand,
		Name:    "echo",
		Args:    []any{[]byte{}, []any{}, map[string]any{}, ""},
	}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			data, err := serializer.Serialize(msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if !reflect.DeepEqual(msg, result) {
				t.Errorf("Message doesn't match after round trip:\nOriginal: %#v\nResult: %#v", msg, result)
			}
		})
	}
}

// TestUnnormalizedValues tests that plain Go values are normalized while serializing
func TestUnnormalizedValues(t *testing.T) {
	for _, name := range []string{"JSON", "Binary"} {
		t.Run(name, func(t *testing.T) {
			serializer := testSerializers[name]()

			msg := common.Message{MsgType: common.MsgTReply, Result: []int{1, 2}}
			data, err := serializer.Serialize(msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if !reflect.DeepEqual(result.Result, []any{int64(1), int64(2)}) {
				t.Errorf("unexpected result %#v", result.Result)
			}

			// values without wire representation must be rejected
			msg.Result = make(chan int)
			if _, err := serializer.Serialize(msg); err == nil {
				t.Errorf("expected error for unsupported value")
			}
		})
	}
}

// TestDeepNesting tests that the nesting limit is enforced while encoding and decoding
func TestDeepNesting(t *testing.T) {
	var v any = "leaf"
	for i := 0; i < maxDepth+2; i++ {
		v = []any{v}
	}
	msg := common.Message{MsgType: common.MsgTReply, Result: v}

	for name, factory := range testSerializers {
		if _, err := factory().Serialize(msg); err == nil {
			t.Errorf("%s: expected error for nesting deeper than %d", name, maxDepth)
		}
	}

	// a hand-made value nested far deeper than any stack would allow to recurse
	deep := make([]byte, 0, 5*100000+1)
	for i := 0; i < 100000; i++ {
		deep = append(deep, tagList, 0, 0, 0, 1)
	}
	deep = append(deep, tagNil)

	frames := map[string][]byte{
		"Binary": append([]byte{byte(common.MsgTReply), hasResult}, deep...),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobMessage{MsgType: common.MsgTReply, Result: deep}); err != nil {
		t.Fatalf("failed to encode gob frame: %v", err)
	}
	frames["GOB"] = buf.Bytes()

	for name, data := range frames {
		var result common.Message
		if err := testSerializers[name]().Deserialize(data, &result); err == nil {
			t.Errorf("%s: expected error when decoding nesting deeper than %d", name, maxDepth)
		}
	}
}

// TestInvalidUTF8 tests that the JSON serializer rejects names it can not represent
func TestInvalidUTF8(t *testing.T) {
	msg := common.Message{MsgType: common.MsgTCommand, Name: "\xffecho"}
	if _, err := NewJSONSerializer().Serialize(msg); err == nil {
		t.Errorf("expected error for a command name that is not valid UTF-8")
	}
}

// TestNew tests the lookup of serializers by name
func TestNew(t *testing.T) {
	for _, name := range []string{"binary", "json", "gob"} {
		if s, ok := New(name); !ok || s == nil {
			t.Errorf("serializer %s not found", name)
		}
	}
	if _, ok := New("xml"); ok {
		t.Errorf("unexpected serializer xml")
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1}, // Only message type, no flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for name",
			data:        []byte{1, 1, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims name length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Argument count too large",
			data:        []byte{1, 2, 0xff, 0xff, 0xff, 0xff},
			expectError: true,
		},
		{
			name:        "Truncated integer",
			data:        []byte{2, 4, tagInt, 0, 0, 0},
			expectError: true,
		},
		{
			name:        "Unknown value tag",
			data:        []byte{2, 4, 0xee},
			expectError: true,
		},
		{
			name:        "Trailing bytes",
			data:        []byte{2, 0, 0},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

// TestInvalidData tests that every serializer returns an error for garbage input
func TestInvalidData(t *testing.T) {
	garbage := map[string][]byte{
		"JSON":   []byte(`{"msg_type":"command","args":[{"t":"int","v":"x"}]}`),
		"GOB":    []byte{0x13, 0x37, 0x00, 0x01},
		"Binary": []byte{1, 2, 0, 0, 0, 1},
	}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			var msg common.Message
			if err := factory().Deserialize(garbage[name], &msg); err == nil {
				t.Errorf("expected error for %q", garbage[name])
			}
		})
	}
}

// TestInvalidJSONEnvelope tests the validation of typed value envelopes
func TestInvalidJSONEnvelope(t *testing.T) {
	serializer := NewJSONSerializer()

	cases := map[string]string{
		"unknown type":  `{"msg_type":"reply","result":{"t":"complex","v":1}}`,
		"missing value": `{"msg_type":"reply","result":{"t":"int"}}`,
		"wrong payload": `{"msg_type":"reply","result":{"t":"bool","v":"yes"}}`,
		"bad msg type":  `{"msg_type":"question"}`,
		"not json":      `{"msg_type":`,
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			var msg common.Message
			if err := serializer.Deserialize([]byte(data), &msg); err == nil {
				t.Errorf("expected error")
			}
		})
	}
}
