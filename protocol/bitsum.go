package protocol

// BitSum is the running 32-bit additive checksum accumulated over the
// frames of a move table while it is being filled. The host accumulates
// the same sum over the frames it sent and submits it with command 8; a
// mismatch discards the table.
type BitSum uint32

// Add folds one buffered frame into the sum. The byte weights match the
// deployed petal controller, so they must not be "fixed": data byte 1
// carries weight 65536 and bytes 2 and 4 carry weight 256, plus the
// command id itself.
func (s *BitSum) Add(f Frame) {
	*s += BitSum(uint32(f.Data[0]) +
		65536*uint32(f.Data[1]) +
		256*uint32(f.Data[2]) +
		uint32(f.Data[3]) +
		256*uint32(f.Data[4]) +
		uint32(f.Data[5]) +
		uint32(f.Command()))
}

// Reset clears the accumulator.
func (s *BitSum) Reset() {
	*s = 0
}

// Value returns the accumulated sum.
func (s BitSum) Value() uint32 {
	return uint32(s)
}
