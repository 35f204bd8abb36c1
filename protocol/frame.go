package protocol

// Frame is one CAN frame as the firmware sees it: a 29-bit extended
// identifier plus up to 8 data bytes. Bits 8..23 of the identifier address
// a positioner, the low 8 bits carry the command id.
type Frame struct {
	ID   uint32
	Len  uint8
	Data [8]byte
}

const (
	// BroadcastID is accepted by every positioner in addition to its own
	// id, so a whole petal can be commanded with one frame.
	BroadcastID = 20000

	// ResponseFlag is added to the positioner id on every reply frame so
	// the host can tell replies from echoed commands.
	ResponseFlag = 0x10000000

	// UnassignedID is the address a positioner answers to before a unique
	// id has been written to its flash (erased flash reads all ones).
	UnassignedID = 65535
)

// Command returns the command id carried in the identifier's low byte.
func (f Frame) Command() uint8 {
	return uint8(f.ID & 0xFF)
}

// Addr returns the positioner address carried in the identifier.
func (f Frame) Addr() uint32 {
	return f.ID >> 8
}

// Accepts reports whether a positioner with the given id should act on the
// frame. Mirrors the two hardware acceptance filters: own id or broadcast.
func Accepts(frameID, posID uint32) bool {
	addr := frameID >> 8
	return addr == posID || addr == BroadcastID
}

// Command builds a command frame addressed to posID.
func Command(posID uint32, cmd uint8, data []byte) Frame {
	f := Frame{ID: posID<<8 | uint32(cmd), Len: uint8(len(data))}
	copy(f.Data[:], data)
	return f
}

// Response builds a reply frame. The payload is two 32-bit words packed
// little-endian into bytes 0-3 and 4-7; n selects how many of the 8 bytes
// are sent.
func Response(posID uint32, n uint8, lower, upper uint32) Frame {
	f := Frame{ID: posID + ResponseFlag, Len: n}
	f.Data[0] = byte(lower)
	f.Data[1] = byte(lower >> 8)
	f.Data[2] = byte(lower >> 16)
	f.Data[3] = byte(lower >> 24)
	f.Data[4] = byte(upper)
	f.Data[5] = byte(upper >> 8)
	f.Data[6] = byte(upper >> 16)
	f.Data[7] = byte(upper >> 24)
	return f
}

// ResponseWords unpacks the two little-endian payload words of a reply.
func ResponseWords(f Frame) (lower, upper uint32) {
	lower = uint32(f.Data[0]) | uint32(f.Data[1])<<8 |
		uint32(f.Data[2])<<16 | uint32(f.Data[3])<<24
	upper = uint32(f.Data[4]) | uint32(f.Data[5])<<8 |
		uint32(f.Data[6])<<16 | uint32(f.Data[7])<<24
	return lower, upper
}
