package shadowstack

import (
	"fmt"
	"strings"
)

// Dump produces a human-readable rendering of the stack: one line per frame
// with entry, numSlots, and prevNumSlots, followed by one line per slot
// with its primitive value and reference.
func (s *Stack) Dump() string {
	var b strings.Builder
	m, k := 0, 0
	for k < s.sp {
		record := s.dataLong[k]
		k++
		slots := getNumSlots(record)

		fmt.Fprintf(&b, "\tm=%d entry=%d sp=%d slots=%d prevSlots=%d\n",
			m, getEntry(record), k, slots, getPrevNumSlots(record))
		for i := 0; i < slots; i, k = i+1, k+1 {
			fmt.Fprintf(&b, "\t\tsp=%d long=%d obj=%v\n", k, s.dataLong[k], s.dataObject[k])
		}
		m++
	}
	return b.String()
}

// String renders an identity summary naming the field that matters most
// for debugging.
func (s *Stack) String() string {
	return fmt.Sprintf("Stack{sp: %d}", s.sp)
}

// Clone returns a deep-enough copy of the stack: its backing arrays are
// copied so that subsequent mutation of either stack does not observe the
// other. Slot references are aliased, which is acceptable because the
// referents' contents are out of the stack's scope.
func (s *Stack) Clone() *Stack {
	dataLong := make([]int64, len(s.dataLong))
	copy(dataLong, s.dataLong)
	dataObject := make([]any, len(s.dataObject))
	copy(dataObject, s.dataObject)

	return &Stack{
		sp:               s.sp,
		dataLong:         dataLong,
		dataObject:       dataObject,
		context:          s.context,
		suspendedContext: s.suspendedContext,
	}
}
