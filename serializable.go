package shadowstack

import (
	"encoding/binary"
	"fmt"
	"reflect"
)

// Serializable objects can be placed in a Stack's reference slots and
// survive Stack.MarshalAppend/Unmarshal.
type Serializable interface {
	// MarshalAppend marshals the object and appends the resulting bytes to
	// the provided buffer.
	MarshalAppend(b []byte) ([]byte, error)
}

// Deserializable objects can be reconstructed from bytes produced by
// MarshalAppend.
type Deserializable interface {
	// Unmarshal unmarshals an object from a buffer, returning the number of
	// bytes read to reconstruct it.
	Unmarshal(b []byte) (n int, err error)
}

// UnmarshalSerializable unmarshals a Serializable object from a buffer,
// returning the object and the number of bytes read.
type UnmarshalSerializable func([]byte) (Serializable, int, error)

var (
	serializableByReflectType = map[reflect.Type]*serializableType{}
	serializableByID          = map[int]*serializableType{}
	serializableNextID        int
)

type serializableType struct {
	id          int
	constructor UnmarshalSerializable
}

var deserializableType = reflect.TypeOf((*Deserializable)(nil)).Elem()

// marshalSerializable appends a Serializable value to b, prefixed with the
// type tag needed to reconstruct it via unmarshalSerializable.
func marshalSerializable(b []byte, s Serializable) ([]byte, error) {
	t, ok := serializableByReflectType[reflect.TypeOf(s)]
	if !ok {
		return nil, fmt.Errorf("shadowstack: type %T has not been registered as Serializable", s)
	}
	b = binary.AppendVarint(b, int64(t.id))
	return s.MarshalAppend(b)
}

// unmarshalSerializable reconstructs a Serializable value from b, returning
// the value and the number of bytes read.
func unmarshalSerializable(b []byte) (Serializable, int, error) {
	id, n := binary.Varint(b)
	if n <= 0 || int64(int(id)) != id {
		return nil, 0, fmt.Errorf("shadowstack: invalid serializable type tag: %v", b)
	}
	t, ok := serializableByID[int(id)]
	if !ok {
		return nil, 0, fmt.Errorf("shadowstack: serializable type %d not registered", id)
	}
	value, vn, err := t.constructor(b[n:])
	return value, n + vn, err
}

// RegisterSerializable registers a Serializable type for use in reference
// slots that must survive Stack.MarshalAppend/Unmarshal.
//
// s (or *s) must implement Deserializable; a constructor is generated with
// reflection. RegisterSerializableConstructor lets a caller hand-write a
// more efficient one instead.
func RegisterSerializable(s Serializable) {
	reflectType := reflect.TypeOf(s)

	switch {
	case reflectType.Implements(deserializableType):
		RegisterSerializableConstructor(s, func(b []byte) (Serializable, int, error) {
			v := reflect.Zero(reflectType).Interface()
			n, err := v.(Deserializable).Unmarshal(b)
			return v.(Serializable), n, err
		})
	case reflect.PointerTo(reflectType).Implements(deserializableType):
		RegisterSerializableConstructor(s, func(b []byte) (Serializable, int, error) {
			p := reflect.New(reflectType)
			n, err := p.Interface().(Deserializable).Unmarshal(b)
			return p.Elem().Interface().(Serializable), n, err
		})
	default:
		panic(fmt.Sprintf("shadowstack: type %T is not Deserializable", s))
	}
}

// RegisterSerializableConstructor registers a Serializable type along with
// a caller-provided constructor that reconstructs it from bytes.
func RegisterSerializableConstructor(s Serializable, constructor UnmarshalSerializable) {
	reflectType := reflect.TypeOf(s)
	if _, ok := serializableByReflectType[reflectType]; ok {
		panic(fmt.Sprintf("shadowstack: serializable type %T already registered", s))
	}

	t := &serializableType{
		id:          serializableNextID,
		constructor: constructor,
	}
	serializableNextID++

	serializableByReflectType[reflectType] = t
	serializableByID[t.id] = t
}
