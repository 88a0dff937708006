package shadowstack

import "fmt"

// Fault is raised (via panic) on a protocol-order violation: pushMethod or
// popMethod called on an empty stack, popSegmentAbove given a marker above
// sp, and similar programmer errors the frame protocol never recovers from.
//
// Fault carries a Dump of the stack at the point of failure, so a caller
// that recovers gets a full diagnostic without the runtime writing anywhere
// on its own.
type Fault struct {
	Op   string
	Msg  string
	Dump string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("shadowstack: %s: %s", f.Op, f.Msg)
}

func fault(s *Stack, op, format string, args ...any) {
	panic(&Fault{
		Op:   op,
		Msg:  fmt.Sprintf(format, args...),
		Dump: s.Dump(),
	})
}
