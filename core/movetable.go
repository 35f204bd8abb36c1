package core

import "fipos/protocol"

// MoveTableCap bounds the number of frames buffered between the fill
// phase and the execute trigger.
const MoveTableCap = 100

// MoveTable buffers raw command frames for synchronized execution and
// keeps the running checksum the host compares against before
// triggering.
type MoveTable struct {
	frames [MoveTableCap]protocol.Frame
	n      int
	sum    protocol.BitSum
}

// Push appends a frame. checksum selects whether it joins the running
// sum; only queued move commands do. Returns false when the table is
// full and the frame was dropped.
func (t *MoveTable) Push(f protocol.Frame, checksum bool) bool {
	if t.n >= MoveTableCap {
		return false
	}
	t.frames[t.n] = f
	t.n++
	if checksum {
		t.sum.Add(f)
	}
	return true
}

func (t *MoveTable) Reset() {
	t.n = 0
	t.sum.Reset()
}

func (t *MoveTable) Frames() []protocol.Frame { return t.frames[:t.n] }

func (t *MoveTable) Len() int { return t.n }

func (t *MoveTable) Full() bool { return t.n >= MoveTableCap }

// Sum is the running checksum over the buffered queued moves.
func (t *MoveTable) Sum() uint32 { return t.sum.Value() }

// ResetSum clears the checksum while keeping the buffered frames. A
// validated table reports a zero sum from then on.
func (t *MoveTable) ResetSum() { t.sum.Reset() }
