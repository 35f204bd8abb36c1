package protocol

// ActivationMagic is the 8-byte payload that must accompany command 128
// for the bootloader to enter download mode.
var ActivationMagic = [8]byte{77, 46, 69, 46, 76, 101, 118, 105}

// IsActivation reports whether a frame is a valid bootloader activation.
func IsActivation(f Frame) bool {
	return f.Command() == BootCmdActivate && f.Data == ActivationMagic
}

// NewActivation builds the command 128 handshake frame.
func NewActivation(posID uint32) Frame {
	return Command(posID, BootCmdActivate, ActivationMagic[:])
}

// NewCodeSize builds the command 129 frame carrying the total firmware
// image size in 32-bit words, packed big-endian.
func NewCodeSize(posID, words uint32) Frame {
	var b [4]byte
	PutU32(b[:], words)
	return Command(posID, BootCmdCodeSize, b[:])
}

// NewPartCount builds the command 130 frame carrying the number of
// buffer-sized parts the download is split into.
func NewPartCount(posID, parts uint32) Frame {
	var b [4]byte
	PutU32(b[:], parts)
	return Command(posID, BootCmdPartCount, b[:])
}

// NewVerify builds the command 131 finalize frame.
func NewVerify(posID uint32) Frame {
	return Command(posID, BootCmdVerify, nil)
}

// NewDataPacket builds one command 132 packet: part index (1-based),
// packet index within the part (big-endian), one little-endian payload
// word, and the word's popcount checksum.
func NewDataPacket(posID uint32, part uint8, packet uint16, word uint32) Frame {
	return Command(posID, BootCmdData, []byte{
		part,
		byte(packet >> 8), byte(packet),
		byte(word), byte(word >> 8), byte(word >> 16), byte(word >> 24),
		WordSum(word),
	})
}

// DataPacket unpacks a command 132 frame. The checksum byte is returned
// as sent; the caller compares it against WordSum(word).
func DataPacket(f Frame) (part uint8, packet uint16, word uint32, sum uint8) {
	part = f.Data[0]
	packet = uint16(f.Data[1])<<8 | uint16(f.Data[2])
	word = uint32(f.Data[3]) | uint32(f.Data[4])<<8 |
		uint32(f.Data[5])<<16 | uint32(f.Data[6])<<24
	sum = f.Data[7]
	return part, packet, word, sum
}
