package core

// Flash memory map of the positioner. The last two pages of the 128 KB
// part are reserved: one for the stored CAN address, one marking the
// start of the application image.
const (
	FlashPageSize = 2048

	// AddrPosID is the flash word holding the positioner id. Only the
	// low 16 bits are meaningful; an erased word reads as id 65535.
	AddrPosID = 0x0801E800

	// ApplicationStart is where the bootloader places the application.
	ApplicationStart = 0x0801F000
)

// Flash is on-chip flash access. Erase works on whole pages; addresses
// passed to ErasePage are rounded down to a page boundary by the caller.
type Flash interface {
	ErasePage(addr uint32) error
	ProgramWord(addr uint32, value uint32) error
	ReadWord(addr uint32) uint32
}

var flashDriver Flash

func SetFlashDriver(d Flash) {
	flashDriver = d
}

func MustFlashDriver() Flash {
	if flashDriver == nil {
		panic("core: no flash driver registered")
	}
	return flashDriver
}
