package shadowstack

import "testing"

func TestFreshEntryUniversality(t *testing.T) {
	s := NewStack(nil, 16)
	if pc := s.NextMethodEntry(); pc != 0 {
		t.Fatalf("first NextMethodEntry: got %d, want 0", pc)
	}
}

// A suspend-and-resume cycle: enter two nested frames, save values into
// them, then call ResumeStack and replay the same frame sequence, checking
// that NextMethodEntry now returns each frame's saved continuation label
// and that the saved slot values are intact.
func TestSaveRestoreRoundTrip(t *testing.T) {
	s := NewStack(nil, 16)

	if pc := s.NextMethodEntry(); pc != 0 {
		t.Fatalf("outer NextMethodEntry: got %d, want 0", pc)
	}
	s.PushMethod(1, 2)
	PushObject(true, s, 0)
	PushLong(2, s, 1)

	if pc := s.NextMethodEntry(); pc != 0 {
		t.Fatalf("inner NextMethodEntry: got %d, want 0", pc)
	}
	s.PushMethod(7, 1)
	PushInt(42, s, 0)

	s.ResumeStack()

	if pc := s.NextMethodEntry(); pc != 1 {
		t.Fatalf("resumed outer NextMethodEntry: got %d, want 1", pc)
	}
	if v := s.GetObject(0); v != true {
		t.Errorf("GetObject(0): got %v, want true", v)
	}
	if v := s.GetLong(1); v != 2 {
		t.Errorf("GetLong(1): got %d, want 2", v)
	}

	if pc := s.NextMethodEntry(); pc != 7 {
		t.Fatalf("resumed inner NextMethodEntry: got %d, want 7", pc)
	}
	if v := s.GetInt(0); v != 42 {
		t.Errorf("GetInt(0): got %d, want 42", v)
	}
}

// Popping every entered frame in reverse order returns the stack to the
// empty sentinel, and a subsequent NextMethodEntry behaves like a fresh
// stack's first call.
func TestNormalReturnUnwindsToEmpty(t *testing.T) {
	s := NewStack(nil, 16)

	s.NextMethodEntry()
	s.PushMethod(1, 2)
	PushObject(true, s, 0)
	PushLong(2, s, 1)

	s.NextMethodEntry()
	s.PushMethod(7, 1)
	PushInt(42, s, 0)

	s.PopMethod()
	s.PopMethod()

	if s.sp != emptySP {
		t.Fatalf("sp after unwinding to bottom: got %d, want %d", s.sp, emptySP)
	}
	if pc := s.NextMethodEntry(); pc != 0 {
		t.Fatalf("NextMethodEntry after full unwind: got %d, want 0", pc)
	}
}

// Nested frames property: sp returns to its value at the matching prior
// enter after a balanced sequence of enter/push/pop.
func TestNestedFramesRestoreStackPointer(t *testing.T) {
	s := NewStack(nil, 16)

	s.NextMethodEntry()
	spAfterFirstEnter := s.sp
	s.PushMethod(1, 3)

	s.NextMethodEntry()
	spAfterSecondEnter := s.sp
	s.PushMethod(2, 1)

	s.NextMethodEntry()
	s.PushMethod(3, 0)
	s.PopMethod()

	if s.sp != spAfterSecondEnter {
		t.Fatalf("sp after popping innermost frame: got %d, want %d", s.sp, spAfterSecondEnter)
	}

	s.PopMethod()
	if s.sp != spAfterFirstEnter {
		t.Fatalf("sp after popping second frame: got %d, want %d", s.sp, spAfterFirstEnter)
	}

	s.PopMethod()
	if s.sp != emptySP {
		t.Fatalf("sp after popping first frame: got %d, want %d", s.sp, emptySP)
	}
}

// For every non-bottom frame, prevNumSlots equals numSlots of the frame
// immediately below it, immediately after NextMethodEntry creates it.
func TestPrevNumSlotsInvariant(t *testing.T) {
	s := NewStack(nil, 16)

	s.NextMethodEntry()
	s.PushMethod(1, 5)

	s.NextMethodEntry()
	record := s.currentFrameRecord()
	if got := getPrevNumSlots(record); got != 5 {
		t.Errorf("prevNumSlots of child frame: got %d, want 5 (parent's numSlots)", got)
	}
}

// Growth preserves state: an operation sequence that triggers reallocation
// must observe the same slot values and sp as against an oversized initial
// capacity.
func TestGrowthPreservesState(t *testing.T) {
	const depth = 10

	build := func(capacity int) *Stack {
		s := NewStack(nil, capacity)
		for i := 0; i < depth; i++ {
			s.NextMethodEntry()
			s.PushMethod(i+1, 4)
			for j := 0; j < 4; j++ {
				PushLong(int64(i*10+j), s, j)
			}
		}
		return s
	}

	small := build(1)
	big := build(1024)

	if small.sp != big.sp {
		t.Fatalf("sp mismatch after growth: small=%d big=%d", small.sp, big.sp)
	}

	small.ResumeStack()
	big.ResumeStack()
	for i := 0; i < depth; i++ {
		pcSmall := small.NextMethodEntry()
		pcBig := big.NextMethodEntry()
		if pcSmall != pcBig || pcSmall != i+1 {
			t.Fatalf("frame %d entry mismatch: small=%d big=%d want=%d", i, pcSmall, pcBig, i+1)
		}
		for j := 0; j < 4; j++ {
			want := int64(i*10 + j)
			if got := small.GetLong(j); got != want {
				t.Fatalf("frame %d slot %d (small): got %d, want %d", i, j, got, want)
			}
			if got := big.GetLong(j); got != want {
				t.Fatalf("frame %d slot %d (big): got %d, want %d", i, j, got, want)
			}
		}
	}
}

// entry and numSlots at the codec's numeric limits are accepted; one bit
// beyond either limit faults.
func TestPushMethodBounds(t *testing.T) {
	s := NewStack(nil, 16)
	s.NextMethodEntry()

	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("PushMethod at the numeric limits should not fault: %v", r)
			}
		}()
		s.PushMethod(maxEntry, maxSlots)
	}()

	s.PopMethod()
	s.NextMethodEntry()

	assertFaults(t, "entry over limit", func() { s.PushMethod(maxEntry+1, 0) })
	assertFaults(t, "numSlots over limit", func() { s.PushMethod(0, maxSlots+1) })
}

func TestPushMethodOnEmptyStackFaults(t *testing.T) {
	s := NewStack(nil, 16)
	assertFaults(t, "PushMethod on empty stack", func() { s.PushMethod(1, 1) })
}

func TestPopMethodOnEmptyStackFaults(t *testing.T) {
	s := NewStack(nil, 16)
	assertFaults(t, "PopMethod on empty stack", func() { s.PopMethod() })
}

func TestNewStackRejectsNonPositiveCapacity(t *testing.T) {
	assertFaults(t, "zero capacity", func() { NewStack(nil, 0) })
	assertFaults(t, "negative capacity", func() { NewStack(nil, -1) })
}

func TestIsFirstInStackOrPushedIsAlwaysTrue(t *testing.T) {
	s := NewStack(nil, 16)
	if !s.IsFirstInStackOrPushed() {
		t.Error("IsFirstInStackOrPushed should conservatively return true")
	}
	s.NextMethodEntry()
	s.PushMethod(1, 0)
	if !s.IsFirstInStackOrPushed() {
		t.Error("IsFirstInStackOrPushed should conservatively return true")
	}
}

func assertFaults(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("%s: expected a fault, got none", name)
		}
		if _, ok := r.(*Fault); !ok {
			t.Fatalf("%s: expected *Fault, got %T: %v", name, r, r)
		}
	}()
	f()
}
