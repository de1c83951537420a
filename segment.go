// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

// SegmentID identifies a Segment within an arena's lifetime. Zero is the
// sentinel "no segment" value.
type SegmentID uint64

// MarkerID identifies a scope anchor pushed when entering a WithHandler
// region. Zero is the sentinel "no marker" value.
type MarkerID uint64

// Segment is a unit of frame storage corresponding to a delimited region
// of the continuation. Exactly one segment is current at any time; a
// segment's Frames hold only the frames within its own region — frames
// below the Parent boundary live in the parent segment, reached once this
// segment empties (see step.go).
type Segment struct {
	ID         SegmentID
	Frames     []Frame
	ScopeChain []MarkerID

	// Parent is the segment this one resumes into once its own Frames
	// empty. Zero means this is the outermost segment of the run.
	Parent SegmentID
	// ReturnFrameIdx is the frame index within Parent at which execution
	// continues once this segment empties.
	ReturnFrameIdx int

	// Owner is the task this segment belongs to. Every segment the VM
	// ever makes current is owned by exactly one task — the top-level
	// program passed to Run included (see vm.mainTask).
	Owner TaskID
}

// arena owns segment storage, recycling freed segments via a free list so
// capture/restore cycles in a hot loop do not churn the allocator.
type arena struct {
	segments map[SegmentID]*Segment
	freeList []SegmentID
	nextID   SegmentID
}

func newArena(prealloc int) *arena {
	a := &arena{segments: make(map[SegmentID]*Segment, prealloc)}
	return a
}

// new allocates a segment, preferring a freed one from the free list.
func (a *arena) new() *Segment {
	if n := len(a.freeList); n > 0 {
		id := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		seg := a.segments[id]
		seg.Frames = seg.Frames[:0]
		seg.ScopeChain = seg.ScopeChain[:0]
		seg.Parent = 0
		seg.ReturnFrameIdx = 0
		seg.Owner = TaskID{}
		return seg
	}
	a.nextID++
	seg := &Segment{ID: a.nextID}
	a.segments[seg.ID] = seg
	return seg
}

// free returns a segment to the free list. The caller must not reference
// the segment or its ID again.
func (a *arena) free(id SegmentID) {
	if id == 0 {
		return
	}
	if _, ok := a.segments[id]; !ok {
		return
	}
	a.freeList = append(a.freeList, id)
}

// get looks up a segment by ID.
func (a *arena) get(id SegmentID) (*Segment, bool) {
	s, ok := a.segments[id]
	return s, ok
}

// push appends a frame to the segment's stack (the top of the stack is
// the last element).
func (s *Segment) push(f Frame) { s.Frames = append(s.Frames, f) }

// top returns the current top frame, or nil if empty.
func (s *Segment) top() Frame {
	if len(s.Frames) == 0 {
		return nil
	}
	return s.Frames[len(s.Frames)-1]
}

// pop removes and returns the top frame.
func (s *Segment) pop() Frame {
	n := len(s.Frames)
	f := s.Frames[n-1]
	s.Frames = s.Frames[:n-1]
	return f
}

// empty reports whether the segment has no frames left.
func (s *Segment) empty() bool { return len(s.Frames) == 0 }

// cloneAbove clones the frame slice above (and including) idx+1 for
// continuation capture. The clone is a fresh slice; frame values
// themselves are shared (they are not mutated once captured — see
// continuation.go).
func (s *Segment) cloneAbove(idx int) []Frame {
	src := s.Frames[idx+1:]
	out := make([]Frame, len(src))
	copy(out, src)
	return out
}

// truncate drops all frames above (and including) idx+1, keeping
// frames[:idx+1].
func (s *Segment) truncate(idx int) {
	s.Frames = s.Frames[:idx+1]
}
