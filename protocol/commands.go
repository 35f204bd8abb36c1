package protocol

// Application command ids, carried in the low byte of the CAN identifier.
const (
	CmdSetCurrents     = 2  // 8 current scalars, each in units of 1/100
	CmdSetPeriods      = 3  // creep periods and spin period
	CmdSetMove         = 4  // queue one move (axis/stage/steps/pause)
	CmdSetLED          = 5  // diagnostic LED state
	CmdTestSequence    = 6  // toggle fixed test pattern on the motor pads
	CmdExecuteTable    = 7  // execute the buffered move table now
	CmdTableStatus     = 8  // validate move-table checksum
	CmdGetTemperature  = 9
	CmdGetCANAddress   = 10
	CmdGetFirmwareVer  = 11
	CmdGetDeviceType   = 12 // fiducial=1, positioner=0
	CmdGetMoveStatus   = 13 // 0=idle, 1=moving
	CmdGetCurrentMon1  = 14 // reserved
	CmdGetCurrentMon2  = 15 // reserved
	CmdSetFiducial     = 16 // device type + duty cycle + on-period
	CmdReadUIDLower    = 17
	CmdReadUIDUpper    = 18
	CmdReadUIDShort    = 19
	CmdWriteCANAddress = 20 // gated by a prior 22-24 challenge
	CmdReadStoredAddr  = 21
	CmdCheckUIDLower   = 22
	CmdCheckUIDUpper   = 23
	CmdCheckUIDShort   = 24
	CmdLegacyMode      = 25 // byte0: 1=legacy payload interpretation
	CmdFirmware        = 26 // reserved
)

// Bootloader command ids.
const (
	BootCmdActivate  = 128
	BootCmdCodeSize  = 129
	BootCmdPartCount = 130
	BootCmdVerify    = 131
	BootCmdData      = 132
)

// Execute codes carried in the high nibble of command 4's first byte.
const (
	ExecImmediate = 0 // single command, run without waiting for sync
	ExecQueued    = 1 // part of a move table, more to come
	ExecLast      = 2 // last command of the move table
)

// Move types carried in the low nibble of command 4's first byte.
const (
	MoveM0CreepCW   = 0
	MoveM0CreepCCW  = 1
	MoveM0CruiseCW  = 2
	MoveM0CruiseCCW = 3
	MoveM1CreepCW   = 4
	MoveM1CreepCCW  = 5
	MoveM1CruiseCW  = 6
	MoveM1CruiseCCW = 7
	MovePauseOnly   = 8
)

// Table status codes reported by command 8's reply.
const (
	TableStatusMatch    = 1
	TableStatusMismatch = 2
	TableStatusReady    = 3
)

// U16 reads a big-endian 16-bit value from two payload bytes.
func U16(hi, lo byte) uint32 {
	return uint32(hi)<<8 | uint32(lo)
}

// U24 reads a big-endian 24-bit value from three payload bytes. Command 4
// packs step counts this way.
func U24(b2, b1, b0 byte) uint32 {
	return uint32(b2)<<16 | uint32(b1)<<8 | uint32(b0)
}

// U32 reads a big-endian 32-bit value from four payload bytes. Used by the
// expected-checksum payload of command 8 and the bootloader size frames.
func U32(b3, b2, b1, b0 byte) uint32 {
	return uint32(b3)<<24 | uint32(b2)<<16 | uint32(b1)<<8 | uint32(b0)
}

// PutU32 writes v big-endian into four payload bytes.
func PutU32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// NewMove builds a command 4 frame. steps is truncated to 24 bits and
// pauseMS to 16.
func NewMove(posID uint32, execCode, moveType uint8, steps uint32, pauseMS uint16) Frame {
	return Command(posID, CmdSetMove, []byte{
		execCode<<4 | moveType&0xF,
		byte(steps >> 16), byte(steps >> 8), byte(steps),
		byte(pauseMS >> 8), byte(pauseMS),
	})
}

// NewSetCurrents builds a command 2 frame from scalars in percent of full
// stall current.
func NewSetCurrents(posID uint32, spinUp0, cruise0, creep0, drop0, spinUp1, cruise1, creep1, drop1 uint8) Frame {
	return Command(posID, CmdSetCurrents, []byte{
		spinUp0, cruise0, creep0, drop0,
		spinUp1, cruise1, creep1, drop1,
	})
}

// NewSetPeriods builds a command 3 frame.
func NewSetPeriods(posID uint32, creep0, creep1, spin uint8) Frame {
	return Command(posID, CmdSetPeriods, []byte{creep0, creep1, spin})
}

// NewTableStatus builds a command 8 frame carrying the checksum the host
// expects the positioner to have accumulated.
func NewTableStatus(posID uint32, sum uint32) Frame {
	var b [4]byte
	PutU32(b[:], sum)
	return Command(posID, CmdTableStatus, b[:])
}
