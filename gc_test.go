package shadowstack

import (
	"runtime"
	"testing"
)

// TestPopMethodReleasesReferenceSlots verifies that PopMethod's clearing of
// dataObject lets the garbage collector reclaim what a popped frame held,
// rather than pinning it for the lifetime of the backing array.
func TestPopMethodReleasesReferenceSlots(t *testing.T) {
	const payloadSize = 8 << 20 // 8 MiB, large enough to show up over GC noise

	s := NewStack(nil, 16)
	s.NextMethodEntry()
	s.PushMethod(1, 1)
	PushObject(make([]byte, payloadSize), s, 0)

	runtime.GC()
	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	s.PopMethod()
	runtime.GC()
	runtime.GC()

	var after runtime.MemStats
	runtime.ReadMemStats(&after)

	if after.HeapAlloc >= before.HeapAlloc {
		t.Errorf("heap did not shrink after PopMethod: before=%d after=%d", before.HeapAlloc, after.HeapAlloc)
	}
	if s.dataObject[1] != nil {
		t.Error("dataObject slot should be nil after PopMethod")
	}
}

// TestReusedFrameReleasesReferenceOnPop verifies that a frame position
// re-entered after a PopMethod releases the reference written into it when
// that frame is popped again.
func TestReusedFrameReleasesReferenceOnPop(t *testing.T) {
	s := NewStack(nil, 16)

	s.NextMethodEntry()
	s.PushMethod(1, 1)
	PushObject(make([]byte, 1<<20), s, 0)
	s.PopMethod()

	s.NextMethodEntry()
	s.PushMethod(2, 1)

	runtime.GC()
	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	PushObject(make([]byte, 8<<20), s, 0)
	s.PopMethod()
	runtime.GC()
	runtime.GC()

	var after runtime.MemStats
	runtime.ReadMemStats(&after)
	if after.HeapAlloc >= before.HeapAlloc+(4<<20) {
		t.Errorf("heap grew unexpectedly: before=%d after=%d", before.HeapAlloc, after.HeapAlloc)
	}
}
