package serializer

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/ValentinKolb/dbsrv/rpc/common"
)

// NewGOBSerializer creates a new serializer using Go's binary gob format
func NewGOBSerializer() IRPCSerializer {
	return &gobSerializerImpl{}
}

// gobSerializerImpl implements the IRPCSerializer interface using gob encoding
type gobSerializerImpl struct {
}

// gobMessage is the gob form of a message. Arguments and result are stored in the
// tagged value encoding of the binary serializer, gob itself would decode nested
// interface values without a depth limit.
type gobMessage struct {
	MsgType common.MessageType
	Name    string
	Args    []byte // empty if there are no arguments
	Result  []byte // empty if the result is nil
	ErrKind string
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	wire := gobMessage{MsgType: msg.MsgType, Name: msg.Name, ErrKind: msg.ErrKind}

	var err error
	if len(msg.Args) > 0 {
		wire.Args = binary.BigEndian.AppendUint32(nil, uint32(len(msg.Args)))
		for _, arg := range msg.Args {
			if wire.Args, err = appendValue(wire.Args, arg, 0); err != nil {
				return nil, err
			}
		}
	}
	if msg.Result != nil {
		if wire.Result, err = appendValue(nil, msg.Result, 0); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wire); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	var wire gobMessage
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&wire); err != nil {
		return err
	}
	*msg = common.Message{MsgType: wire.MsgType, Name: wire.Name, ErrKind: wire.ErrKind}

	if len(wire.Args) > 0 {
		r := &reader{data: wire.Args}
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
		if r.pos != len(r.data) {
			return fmt.Errorf("%d trailing bytes after arguments", len(r.data)-r.pos)
		}
	}

	if len(wire.Result) > 0 {
		r := &reader{data: wire.Result}
		var err error
		if msg.Result, err = r.readValue(0); err != nil {
			return fmt.Errorf("result: %w", err)
		}
		if r.pos != len(r.data) {
			return fmt.Errorf("%d trailing bytes after result", len(r.data)-r.pos)
		}
	}
	return nil
}
