package shadowstack

import "fmt"

// Marker is an opaque position within a specific Stack, meaningful only on
// its originating instance.
type Marker struct {
	pointer int
}

func (m Marker) String() string {
	return fmt.Sprintf("Marker(%d)", m.pointer)
}

// Segment is a detached, contiguous run of frames from some marker's frame
// upward,
// together with its own relative stack pointer. It is self-contained: the
// slot arrays are copied out of the origin stack on detachment, so mutating
// either side afterward does not affect the other. It can be pushed back
// onto the same stack or transferred to another.
type Segment struct {
	values []int64
	refs   []any
	sp     int
}

// GetMarker returns an opaque position describing the current frame.
func (s *Stack) GetMarker() Marker {
	if s.sp == emptySP {
		return Marker{pointer: emptySP}
	}
	return Marker{pointer: s.sp - frameRecordSize}
}

// CurrentFrame is an alias for GetMarker, matching the continuation host's
// vocabulary.
func (s *Stack) CurrentFrame() Marker {
	return s.GetMarker()
}

// ResumeAt sets sp so that the frame identified by marker becomes current.
// No frames are destroyed; the region above marker becomes logically
// inactive but remains in storage until the next PushMethod, NextMethodEntry,
// or PopSegmentAbove overwrites or clears it.
func (s *Stack) ResumeAt(marker Marker) {
	if marker.pointer == emptySP {
		s.sp = emptySP
		return
	}
	s.sp = marker.pointer + frameRecordSize
}

// PopSegmentAbove splits the stack at marker. The frame identified by marker
// and every frame above it, up to and including the current frame, are
// copied into a newly allocated Segment; the stack is then truncated so that
// sp points to the frame just below marker. The vacated positions have their reference slots
// cleared and the next header position is zeroed.
//
// PopSegmentAbove panics if marker is above sp. If the stack is empty, an
// empty segment is returned and the stack is left unchanged.
func (s *Stack) PopSegmentAbove(marker Marker) *Segment {
	if marker.pointer > s.sp {
		fault(s, "PopSegmentAbove", "marker %d is above stack pointer %d", marker.pointer, s.sp)
	}
	if s.sp == emptySP {
		return &Segment{sp: emptySP}
	}

	fromIdx := marker.pointer
	if fromIdx < 0 {
		fromIdx = 0
	}
	toIdx := s.sp + getNumSlots(s.currentFrameRecord())
	oldSP := s.sp

	values := append([]int64(nil), s.dataLong[fromIdx:toIdx]...)
	refs := append([]any(nil), s.dataObject[fromIdx:toIdx]...)

	firstFrame := s.dataLong[fromIdx]
	newSP := fromIdx - getPrevNumSlots(firstFrame)
	delta := oldSP - newSP

	s.dataLong[fromIdx] = 0
	clear(s.dataObject[fromIdx:toIdx])

	// As in PopMethod, splitting off the bottom-most frame arithmetically
	// lands on 0; normalize to the empty sentinel.
	if newSP <= 0 {
		newSP = emptySP
	}
	s.sp = newSP

	return &Segment{values: values, refs: refs, sp: delta}
}

// PushSegment appends segment's frames above the current frame, growing
// storage as needed. The segment's first-frame prevNumSlots is rewritten to
// match the current top frame's numSlots, so a segment captured elsewhere
// replays correctly regardless of what numSlots the destination's current
// frame has. sp advances so that the segment's originally-current frame
// becomes current.
//
// segment is not consumed: it may be pushed again, onto this or any other
// Stack, since PushSegment copies rather than aliases its slot storage.
func (s *Stack) PushSegment(segment *Segment) {
	if len(segment.values) == 0 {
		return
	}

	curr := s.currentFrameRecord()
	currSlots := getNumSlots(curr)
	firstIdx := s.sp + currSlots
	if s.sp == emptySP {
		firstIdx = 0
	}
	lastFrame := firstIdx + len(segment.values)
	if lastFrame+frameRecordSize > len(s.dataObject) {
		s.growStack(lastFrame + frameRecordSize)
	}

	copy(s.dataLong[firstIdx:], segment.values)
	copy(s.dataObject[firstIdx:], segment.refs)

	s.dataLong[firstIdx] = setPrevNumSlots(s.dataLong[firstIdx], currSlots)
	s.dataLong[lastFrame] = 0

	// segment.sp is measured from the frame below the segment on its origin
	// stack; re-base it on firstIdx using that frame's recorded numSlots.
	s.sp = firstIdx + segment.sp - getPrevNumSlots(segment.values[0])
}
