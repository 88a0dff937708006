// Package shadowstack materializes the call stacks of suspendable
// computations on the heap.
//
// When instrumented code running on an ordinary goroutine suspends, the
// active frames of the suspendable call chain are saved into a Stack; on
// resume they are replayed, re-entering each method at a previously
// recorded continuation label. Stack also exposes delimited-continuation
// primitives: capturing a contiguous range of frames above a Marker,
// detaching that range as a Segment, and splicing a Segment onto another
// (or the same) Stack.
//
// A fixed call shape at every instrumented method's entry and around every
// suspendable call site is the whole contract:
//
//	pc := stack.NextMethodEntry()
//	switch pc {
//	case 1:
//		// restore locals from stack, goto L1
//	case 2:
//		// ...
//	default:
//		// fresh entry
//	}
//	// ... work ...
//	stack.PushMethod(L, n)
//	// push slot values, call the suspendable sub-method
//	// L:
//	stack.PopMethod() // on normal return only
//
// The bytecode rewriter that emits this shape, the fiber/continuation
// scheduler that owns a Stack, and the wire format used to persist a
// suspended computation are external collaborators; this package only
// implements the contracts they rely on.
package shadowstack

import (
	"log/slog"
	"strconv"
)

const (
	// emptySP is the sentinel sp value of a stack with no active frame.
	emptySP = -1

	// frameRecordSize is the number of header words preceding a frame's
	// payload slots.
	frameRecordSize = 1

	// initialMethodStackDepth is the reserve of header words added on top
	// of the caller-requested capacity, and the capacity used for the
	// goroutine-local default stack.
	initialMethodStackDepth = 16
)

// Stack is the heap-resident call stack of one suspendable computation.
//
// A Stack belongs to at most one computation at a time; concurrent access
// from more than one goroutine is undefined behavior, by design.
type Stack struct {
	// sp is the stack pointer: the index of the current frame's first
	// payload slot, or emptySP if no frame is active.
	sp int

	// dataLong holds primitive payload slots and frame header words in
	// lock-step with dataObject.
	dataLong []int64

	// dataObject holds reference payload slots; header positions hold no
	// meaningful reference.
	dataObject []any

	// context is the immutable owner (fiber, continuation, or nil),
	// supplied at construction and never reassigned.
	context any

	// suspendedContext is a one-shot hand-off slot for a captured
	// continuation, threaded across a suspend/resume boundary.
	suspendedContext any
}

// NewStack creates an empty Stack with room for at least capacity payload
// slots before the first reallocation, owned by the given context (which
// may be nil).
//
// NewStack panics if capacity is non-positive: that is a configuration
// error, rejected immediately and never reachable after construction.
func NewStack(context any, capacity int) *Stack {
	if capacity <= 0 {
		panic(&Fault{Op: "NewStack", Msg: "capacity must be positive, got " + strconv.Itoa(capacity)})
	}
	size := capacity + frameRecordSize*initialMethodStackDepth
	s := &Stack{
		dataLong:   make([]int64, size),
		dataObject: make([]any, size),
		context:    context,
	}
	s.ResumeStack()
	return s
}

// Context returns the immutable owner supplied at construction.
func (s *Stack) Context() any {
	return s.context
}

// ResumeStack resets sp to the empty sentinel without disturbing frame
// contents. Called once at the start of replaying a suspended computation:
// the instrumented dispatcher at the bottom-most frame re-enters
// NextMethodEntry, observes the saved label, restores its locals, and calls
// into the next instrumented method, which repeats the process — the
// shadow-stack is "copied" onto the goroutine stack one frame at a time as
// control descends.
func (s *Stack) ResumeStack() {
	s.sp = emptySP
}

// NextMethodEntry advances the stack pointer to the next frame above the
// caller's current frame and returns that frame's saved entry label, or 0
// if it has never been pushed. If the current frame's header has no entry
// label recorded yet, sp does not move and 0 is returned.
func (s *Stack) NextMethodEntry() int {
	if s.sp == emptySP {
		s.sp = frameRecordSize
		entry := getEntry(s.currentFrameRecord())
		slog.Debug("shadowstack: entered fresh stack", "sp", s.sp, "entry", entry)
		return entry
	}

	prev := s.currentFrameRecord()
	if isFreshRecord(prev) {
		return 0
	}

	s.moveToNextFrame()
	s.updateFrameRecord(getNumSlots(prev))
	entry := getEntry(s.currentFrameRecord())
	slog.Debug("shadowstack: entered frame", "sp", s.sp, "entry", entry)
	return entry
}

func (s *Stack) currentFrameRecord() int64 {
	if s.sp <= 0 {
		return 0
	}
	return s.dataLong[s.sp-frameRecordSize]
}

// moveToNextFrame increments sp past the current frame's payload and its
// successor's header.
func (s *Stack) moveToNextFrame() {
	prevSlots := getNumSlots(s.currentFrameRecord())
	nextIndex := s.sp + prevSlots
	s.sp = nextIndex + frameRecordSize
}

// updateFrameRecord records the predecessor's slot count into the current
// frame's header early, so popMethod can unwind even if the matching
// pushMethod never runs (e.g. a panic before the suspendable call site).
func (s *Stack) updateFrameRecord(slots int) {
	idx := s.sp - frameRecordSize
	s.dataLong[idx] = setPrevNumSlots(s.dataLong[idx], slots)
}

// PushMethod writes the caller-chosen continuation label and save-slot
// count into the current frame's metadata, and ensures numSlots payload
// slots plus one fresh header above are available.
//
// PushMethod panics if called on an empty stack, or if entry or numSlots
// exceed their numeric limits (entry < 2^14, numSlots < 2^16).
func (s *Stack) PushMethod(entry, numSlots int) {
	if s.sp == emptySP {
		fault(s, "PushMethod", "can't push a method before a method is entered; call NextMethodEntry first")
	}
	if entry < 0 || entry > maxEntry {
		fault(s, "PushMethod", "entry %d out of range [0, %d]", entry, maxEntry)
	}
	if numSlots < 0 || numSlots > maxSlots {
		fault(s, "PushMethod", "numSlots %d out of range [0, %d]", numSlots, maxSlots)
	}

	idx := s.sp - frameRecordSize
	record := s.dataLong[idx]
	record = setEntry(record, entry)
	record = setNumSlots(record, numSlots)
	s.dataLong[idx] = record

	nextMethodIdx := s.sp + numSlots
	nextMethodSP := nextMethodIdx + frameRecordSize
	if nextMethodSP > len(s.dataObject) {
		s.growStack(nextMethodSP)
	}

	// Clear the next frame's header so its NextMethodEntry observes a
	// fresh entry.
	s.dataLong[nextMethodIdx] = 0
}

// PopMethod is invoked on normal (non-suspending) return from an
// instrumented method. It clears the current frame's payload references
// so they become collectible, clears the header metadata, and moves sp to
// the predecessor frame.
//
// PopMethod panics if the stack is already empty.
func (s *Stack) PopMethod() {
	if s.sp <= 0 {
		fault(s, "PopMethod", "can't pop method with sp at %d", s.sp)
	}

	oldSP := s.sp
	idx := oldSP - frameRecordSize
	record := s.dataLong[idx]
	slots := getNumSlots(record)
	newSP := idx - getPrevNumSlots(record)

	s.dataLong[idx] = 0
	clear(s.dataObject[oldSP : oldSP+slots])

	// Popping the bottom-most frame arithmetically lands on 0, not the
	// empty sentinel; normalize so sp is always either emptySP or a valid
	// current-frame position.
	if newSP <= 0 {
		newSP = emptySP
	}
	s.sp = newSP
}

// IsFirstInStackOrPushed is a reserved fast-path check. It conservatively
// returns true; the frame protocol is correct for any return value.
func (s *Stack) IsFirstInStackOrPushed() bool {
	return true
}

func (s *Stack) growStack(required int) {
	newSize := len(s.dataObject)
	if newSize == 0 {
		newSize = 1
	}
	for newSize < required {
		newSize *= 2
	}

	dataLong := make([]int64, newSize)
	copy(dataLong, s.dataLong)
	s.dataLong = dataLong

	dataObject := make([]any, newSize)
	copy(dataObject, s.dataObject)
	s.dataObject = dataObject

	slog.Debug("shadowstack: grew backing arrays", "size", newSize)
}

