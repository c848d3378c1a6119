package serializer

import "github.com/ValentinKolb/dbsrv/rpc/common"

// IRPCSerializer is the interface for all Message Serializers.
// Implementations must round-trip every normalized Message (see common.Normalize)
// and must return an error instead of panicking on malformed input.
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a Message
	// It takes a byte array and a pointer to a Message as parameters
	// It returns an error if any
	Deserialize(b []byte, msg *common.Message) error
}

// New returns the serializer registered under the given name (binary, json, gob)
func New(name string) (IRPCSerializer, bool) {
	factory, ok := factories[name]
	if !ok {
		return nil, false
	}
	return factory(), true
}

var factories = map[string]func() IRPCSerializer{
	"binary": NewBinarySerializer,
	"json":   NewJSONSerializer,
	"gob":    NewGOBSerializer,
}
