package protocol

// byteBits maps a byte to the number of set bits in it. The bootloader
// data-packet checksum is the summed population count of the four payload
// bytes, looked up here rather than computed bit-by-bit.
var byteBits [256]uint8

func init() {
	for i := range byteBits {
		n := uint8(0)
		for v := i; v != 0; v >>= 1 {
			n += uint8(v & 1)
		}
		byteBits[i] = n
	}
}

// WordSum returns the bootloader checksum for one 32-bit payload word: the
// population count of the word, as the sum of per-byte table lookups.
func WordSum(w uint32) uint8 {
	return byteBits[byte(w)] +
		byteBits[byte(w>>8)] +
		byteBits[byte(w>>16)] +
		byteBits[byte(w>>24)]
}
