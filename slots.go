package shadowstack

import "math"

// slots.go implements typed, type-punned load/store of the current frame's
// payload slots. Push functions are free functions taking the stack
// explicitly, matching the call shape instrumented call sites use; Get
// methods read the current frame of the receiver.
//
// There is no bounds-checking beyond what the backing array performs, and
// no type discrimination: the instrumenter that emits these calls
// guarantees the read type matches the write type for a given slot index.

// PushInt writes a sign-extended 32-bit value into slot idx of the current
// frame's primitive array.
func PushInt(value int32, s *Stack, idx int) {
	s.dataLong[s.sp+idx] = int64(value)
}

// PushLong writes a 64-bit value verbatim into slot idx.
func PushLong(value int64, s *Stack, idx int) {
	s.dataLong[s.sp+idx] = value
}

// PushFloat writes value's raw 32-bit IEEE-754 bit pattern, zero-extended,
// into slot idx.
func PushFloat(value float32, s *Stack, idx int) {
	s.dataLong[s.sp+idx] = int64(math.Float32bits(value))
}

// PushDouble writes value's raw 64-bit IEEE-754 bit pattern into slot idx.
func PushDouble(value float64, s *Stack, idx int) {
	s.dataLong[s.sp+idx] = int64(math.Float64bits(value))
}

// PushObject writes value into slot idx of the current frame's reference
// array.
func PushObject(value any, s *Stack, idx int) {
	s.dataObject[s.sp+idx] = value
}

// GetInt reads slot idx of the current frame, taking the low 32 bits.
func (s *Stack) GetInt(idx int) int32 {
	return int32(s.dataLong[s.sp+idx])
}

// GetLong reads slot idx of the current frame as a full 64-bit word.
func (s *Stack) GetLong(idx int) int64 {
	return s.dataLong[s.sp+idx]
}

// GetFloat re-interprets the low 32 bits of slot idx as IEEE-754.
func (s *Stack) GetFloat(idx int) float32 {
	return math.Float32frombits(uint32(s.dataLong[s.sp+idx]))
}

// GetDouble re-interprets the full 64-bit word of slot idx as IEEE-754.
func (s *Stack) GetDouble(idx int) float64 {
	return math.Float64frombits(uint64(s.dataLong[s.sp+idx]))
}

// GetObject reads slot idx of the current frame's reference array.
func (s *Stack) GetObject(idx int) any {
	return s.dataObject[s.sp+idx]
}
