package shadowstack

import (
	"encoding/binary"
	"fmt"
)

// builtin.go defines Serializable wrappers for common Go builtin types, so
// reference slots holding ordinary values do not each need a bespoke
// Serializable type.

// Ref wraps an int for use in a reference slot that must survive
// Stack.MarshalAppend/Unmarshal.
type Ref int

var (
	_ Serializable   = Ref(0)
	_ Deserializable = (*Ref)(nil)
)

func (r Ref) MarshalAppend(b []byte) ([]byte, error) {
	return binary.AppendVarint(b, int64(r)), nil
}

func (r *Ref) Unmarshal(b []byte) (int, error) {
	value, n := binary.Varint(b)
	if n <= 0 || int64(Ref(value)) != value {
		return 0, fmt.Errorf("shadowstack: invalid Ref: %v", b)
	}
	*r = Ref(value)
	return n, nil
}

// Text wraps a string for use in a reference slot that must survive
// Stack.MarshalAppend/Unmarshal.
type Text string

var (
	_ Serializable   = Text("")
	_ Deserializable = (*Text)(nil)
)

func (t Text) MarshalAppend(b []byte) ([]byte, error) {
	b = binary.AppendUvarint(b, uint64(len(t)))
	return append(b, t...), nil
}

func (t *Text) Unmarshal(b []byte) (int, error) {
	size, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, fmt.Errorf("shadowstack: invalid Text length: %v", b)
	}
	end := n + int(size)
	if end > len(b) {
		return 0, fmt.Errorf("shadowstack: truncated Text: %v", b)
	}
	*t = Text(b[n:end])
	return end, nil
}

func init() {
	RegisterSerializable(Ref(0))
	RegisterSerializable(Text(""))
}
