package shadowstack

import (
	"encoding/binary"
	"fmt"
)

// MarshalAppend appends a serialized Stack to the provided buffer.
//
// The owning context is not part of the encoding: it is persisted by
// reference, the caller re-supplies it (e.g. via NewStack) when
// reconstructing the stack. sp is likewise not encoded; ResumeStack is
// always called on reconstruction, matching the contract that a
// deserialized computation is replayed from its bottom-most frame.
//
// dataLong is encoded in full (header words round-trip as opaque 64-bit
// words, no re-derivation needed). dataObject is encoded sparsely: an
// index and a tagged Serializable payload for every non-nil reference slot.
func (s *Stack) MarshalAppend(b []byte) ([]byte, error) {
	b = binary.AppendVarint(b, int64(len(s.dataLong)))
	for _, v := range s.dataLong {
		b = binary.AppendVarint(b, v)
	}

	var refCount int
	for _, v := range s.dataObject {
		if v != nil {
			refCount++
		}
	}
	b = binary.AppendVarint(b, int64(refCount))

	for i, v := range s.dataObject {
		if v == nil {
			continue
		}
		sv, ok := v.(Serializable)
		if !ok {
			return nil, fmt.Errorf("shadowstack: reference slot %d holds non-Serializable value %T", i, v)
		}
		b = binary.AppendVarint(b, int64(i))
		var err error
		b, err = marshalSerializable(b, sv)
		if err != nil {
			return nil, fmt.Errorf("shadowstack: marshaling slot %d: %w", i, err)
		}
	}

	return b, nil
}

// Unmarshal deserializes a Stack from the provided buffer into the receiver,
// returning the number of bytes read. The receiver's context is left
// untouched: callers reconstruct a Stack with NewStack(context, cap) and
// then call Unmarshal to populate its frames.
func (s *Stack) Unmarshal(b []byte) (int, error) {
	size, n := binary.Varint(b)
	if n <= 0 || int64(int(size)) != size {
		return 0, fmt.Errorf("shadowstack: invalid stack size: %v", b)
	}

	dataLong := make([]int64, size)
	for i := range dataLong {
		v, vn := binary.Varint(b[n:])
		if vn <= 0 {
			return 0, fmt.Errorf("shadowstack: invalid stack word at index %d", i)
		}
		dataLong[i] = v
		n += vn
	}

	refCount, vn := binary.Varint(b[n:])
	if vn <= 0 || int64(int(refCount)) != refCount {
		return 0, fmt.Errorf("shadowstack: invalid reference count: %v", b[n:])
	}
	n += vn

	dataObject := make([]any, size)
	for i := 0; i < int(refCount); i++ {
		idx, vn := binary.Varint(b[n:])
		if vn <= 0 || int64(int(idx)) != idx || int(idx) >= len(dataObject) {
			return 0, fmt.Errorf("shadowstack: invalid reference slot index: %v", b[n:])
		}
		n += vn

		value, sn, err := unmarshalSerializable(b[n:])
		if err != nil {
			return 0, fmt.Errorf("shadowstack: unmarshaling slot %d: %w", idx, err)
		}
		n += sn

		dataObject[idx] = value
	}

	s.dataLong = dataLong
	s.dataObject = dataObject
	s.ResumeStack()
	return n, nil
}
