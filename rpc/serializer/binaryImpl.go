package serializer

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/ValentinKolb/dbsrv/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasName    byte = 1 << 0
	hasArgs    byte = 1 << 1
	hasResult  byte = 1 << 2
	hasErrKind byte = 1 << 3
)

// Type tags of the value encoding
const (
	tagNil byte = iota
	tagFalse
	tagTrue
	tagInt
	tagFloat
	tagString
	tagBytes
	tagList
	tagMap
)

// maxDepth limits the nesting of lists and maps
const maxDepth = 64

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Write message type and placeholder for the flags
	result := make([]byte, 2, 64)
	result[0] = byte(msg.MsgType)

	var flags byte = 0
	var err error

	// Handle Name
	if msg.Name != "" {
		flags |= hasName
		result = appendString(result, msg.Name)
	}

	// Handle Args
	if len(msg.Args) > 0 {
		flags |= hasArgs
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Args)))
		for _, arg := range msg.Args {
			if result, err = appendValue(result, arg, 0); err != nil {
				return nil, err
			}
		}
	}

	// Handle Result
	if msg.Result != nil {
		flags |= hasResult
		if result, err = appendValue(result, msg.Result, 0); err != nil {
			return nil, err
		}
	}

	// Handle ErrKind
	if msg.ErrKind != "" {
		flags |= hasErrKind
		result = appendString(result, msg.ErrKind)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := data[1]
	r := &reader{data: data, pos: 2}

	var err error

	// Read Name if present
	if flags&hasName != 0 {
		if msg.Name, err = r.readString(); err != nil {
			return fmt.Errorf("name: %w", err)
		}
	}

	// Read Args if present
	if flags&hasArgs != 0 {
		n, err := r.readLength()
		if err != nil {
			return fmt.Errorf("args: %w", err)
		}
		msg.Args = make([]any, n)
		for i := range msg.Args {
			if msg.Args[i], err = r.readValue(0); err != nil {
				return fmt.Errorf("argument %d: %w", i, err)
			}
		}
	}

	// Read Result if present
	if flags&hasResult != 0 {
		if msg.Result, err = r.readValue(0); err != nil {
			return fmt.Errorf("result: %w", err)
		}
	}

	// Read ErrKind if present
	if flags&hasErrKind != 0 {
		if msg.ErrKind, err = r.readString(); err != nil {
			return fmt.Errorf("error kind: %w", err)
		}
	}

	if r.pos != len(data) {
		return fmt.Errorf("%d trailing bytes after message", len(data)-r.pos)
	}

	return nil
}

// --------------------------------------------------------------------------
// Encoding Helper
// --------------------------------------------------------------------------

// appendString writes a length prefixed string
func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// appendValue writes a tagged value. Values must be normalized (see common.Normalize).
func appendValue(buf []byte, v any, depth int) ([]byte, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("value nested deeper than %d levels", maxDepth)
	}

	var err error
	switch x := v.(type) {
	case nil:
		buf = append(buf, tagNil)
	case bool:
		if x {
			buf = append(buf, tagTrue)
		} else {
			buf = append(buf, tagFalse)
		}
	case int64:
		buf = append(buf, tagInt)
		buf = binary.BigEndian.AppendUint64(buf, uint64(x))
	case float64:
		buf = append(buf, tagFloat)
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(x))
	case string:
		buf = append(buf, tagString)
		buf = appendString(buf, x)
	case []byte:
		buf = append(buf, tagBytes)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(x)))
		buf = append(buf, x...)
	case []any:
		buf = append(buf, tagList)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(x)))
		for _, e := range x {
			if buf, err = appendValue(buf, e, depth+1); err != nil {
				return nil, err
			}
		}
	case map[string]any:
		buf = append(buf, tagMap)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(x)))
		// sorted keys keep the encoding deterministic
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			buf = appendString(buf, k)
			if buf, err = appendValue(buf, x[k], depth+1); err != nil {
				return nil, err
			}
		}
	default:
		// not normalized yet, try once
		n, nErr := common.Normalize(v)
		if nErr != nil {
			return nil, nErr
		}
		return appendValue(buf, n, depth)
	}
	return buf, nil
}

// --------------------------------------------------------------------------
// Decoding Helper
// --------------------------------------------------------------------------

// reader is a bounds checked cursor over a byte slice
type reader struct {
	data []byte
	pos  int
}

func (r *reader) need(n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return fmt.Errorf("data too short (need %d bytes at offset %d, have %d)", n, r.pos, len(r.data))
	}
	return nil
}

func (r *reader) readByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readUint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

// readLength reads a length prefix and checks it against the remaining data,
// every element occupies at least one byte
func (r *reader) readLength() (int, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos : r.pos+4]))
	r.pos += 4
	if n > len(r.data)-r.pos {
		return 0, fmt.Errorf("length %d exceeds remaining %d bytes", n, len(r.data)-r.pos)
	}
	return n, nil
}

func (r *reader) readBytes() ([]byte, error) {
	n, err := r.readLength()
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

func (r *reader) readString() (string, error) {
	n, err := r.readLength()
	if err != nil {
		return "", err
	}
	s := string(r.data[r.pos : r.pos+n])
	r.pos += n
	return s, nil
}

func (r *reader) readValue(depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("value nested deeper than %d levels", maxDepth)
	}

	tag, err := r.readByte()
	if err != nil {
		return nil, err
	}

	switch tag {
	case tagNil:
		return nil, nil
	case tagFalse:
		return false, nil
	case tagTrue:
		return true, nil
	case tagInt:
		u, err := r.readUint64()
		return int64(u), err
	case tagFloat:
		u, err := r.readUint64()
		return math.Float64frombits(u), err
	case tagString:
		return r.readString()
	case tagBytes:
		return r.readBytes()
	case tagList:
		n, err := r.readLength()
		if err != nil {
			return nil, err
		}
		list := make([]any, n)
		for i := range list {
			if list[i], err = r.readValue(depth + 1); err != nil {
				return nil, err
			}
		}
		return list, nil
	case tagMap:
		n, err := r.readLength()
		if err != nil {
			return nil, err
		}
		m := make(map[string]any, n)
		for i := 0; i < n; i++ {
			k, err := r.readString()
			if err != nil {
				return nil, err
			}
			if m[k], err = r.readValue(depth + 1); err != nil {
				return nil, err
			}
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown value tag %d", tag)
	}
}
