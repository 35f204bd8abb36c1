package protocol

// FrameFIFO is a fixed-capacity ring of received frames. The CAN
// receive-complete interrupt pushes, the foreground dispatcher pops.
// Single producer, single consumer; read and write indices are each
// written from exactly one context, so no locking is needed.
type FrameFIFO struct {
	frames  []Frame
	read    int
	write   int
	size    int
	dropped uint32
}

// NewFrameFIFO creates a FrameFIFO with the specified capacity.
func NewFrameFIFO(capacity int) *FrameFIFO {
	return &FrameFIFO{
		frames: make([]Frame, capacity+1),
		size:   capacity + 1,
	}
}

// Push appends a frame. Returns false (and counts the drop) when full;
// dropping is preferable to blocking in interrupt context.
func (f *FrameFIFO) Push(frame Frame) bool {
	next := (f.write + 1) % f.size
	if next == f.read {
		f.dropped++
		return false
	}
	f.frames[f.write] = frame
	f.write = next
	return true
}

// Pop removes and returns the oldest frame, if any.
func (f *FrameFIFO) Pop() (Frame, bool) {
	if f.read == f.write {
		return Frame{}, false
	}
	frame := f.frames[f.read]
	f.read = (f.read + 1) % f.size
	return frame, true
}

// Len returns the number of buffered frames.
func (f *FrameFIFO) Len() int {
	n := f.write - f.read
	if n < 0 {
		n += f.size
	}
	return n
}

// Dropped returns the number of frames discarded because the ring was full.
func (f *FrameFIFO) Dropped() uint32 {
	return f.dropped
}

// Reset discards all buffered frames.
func (f *FrameFIFO) Reset() {
	f.read = f.write
}
