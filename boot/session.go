// Package boot implements the CAN flash-transfer protocol that runs
// before the application image. It shares the wire format with the
// protocol package but deliberately nothing else with the application:
// the two images never run at the same time and link separately.
package boot

import (
	"runtime"

	"fipos/protocol"
)

// BufferSize is the number of 32-bit words in one download part.
const BufferSize = 4000

// Bootloader identity, reported by the activation handshake.
const (
	VersionMajor = 3
	VersionMinor = 5
)

// ActivationTimeout is how long the loader waits for the host before
// starting the resident application, in milliseconds.
const ActivationTimeout = 2000

// Flash layout. Mirrors the application's view of the same part.
const (
	PageSize         = 2048
	AddrPosID        = 0x0801E800
	ApplicationStart = 0x0801F000
)

// Error counters accumulated during a download and reported by the
// verify command.
const (
	ErrUnexpectedCommand = iota
	ErrWrongPart
	ErrWrongPacket
	ErrChecksum
	ErrShortWrite
	numErrCounters
)

// Transport sends one frame to the host.
type Transport interface {
	Send(f protocol.Frame) error
}

// Flash is the minimal on-chip flash access the loader needs.
type Flash interface {
	ErasePage(addr uint32) error
	ProgramWord(addr uint32, value uint32) error
	ReadWord(addr uint32) uint32
}

// Clock supplies the millisecond tick for the activation timeout.
type Clock interface {
	Millis() uint32
}

// Board covers the actions that end a session. JumpToApplication and
// Halt never return on hardware; fakes may return so tests can observe
// them.
type Board interface {
	SetLoaderVersion(major, minor uint32)
	JumpToApplication()
	Halt()
}

// Pumper drains a polled receive path into the FIFO, for controllers
// whose interrupt line is level-asserted and can miss edges.
type Pumper interface {
	Pump()
}

// Session is one reset-to-reset run of the transfer protocol.
type Session struct {
	rx    *protocol.FrameFIFO
	tx    Transport
	flash Flash
	clock Clock
	board Board

	pump Pumper

	posID    uint32
	codeSize uint32
	parts    uint32
	buffer   [BufferSize]uint32
	errs     [numErrCounters]uint32
}

func NewSession(rx *protocol.FrameFIFO, tx Transport, flash Flash, clock Clock, board Board) *Session {
	return &Session{
		rx:    rx,
		tx:    tx,
		flash: flash,
		clock: clock,
		board: board,
	}
}

// SetPump installs an optional receive pump polled while waiting for
// frames.
func (s *Session) SetPump(p Pumper) {
	s.pump = p
}

// Run drives the session until the device jumps to the application.
func (s *Session) Run() {
	s.board.SetLoaderVersion(VersionMajor, VersionMinor)
	s.posID = s.flash.ReadWord(AddrPosID) & 0xFFFF
	for {
		if !s.awaitActivation() {
			s.board.JumpToApplication()
			return
		}
		// Activation acknowledge: a recognizable fixed pattern.
		s.send(8, 0x04030201, 0x08070605)

		s.codeSize = s.awaitWord(protocol.BootCmdCodeSize)
		s.parts = s.awaitWord(protocol.BootCmdPartCount)
		s.eraseApplication()
		s.download()

		if s.verify() {
			s.board.JumpToApplication()
			return
		}
		// Errors were reported; wipe the partial image and let the
		// host restart the handshake.
		s.eraseApplication()
		for i := range s.errs {
			s.errs[i] = 0
		}
	}
}

// awaitActivation waits up to ActivationTimeout for the magic payload
// on the activation command. A timeout or any other frame means no
// update this boot.
func (s *Session) awaitActivation() bool {
	f, ok := s.recvTimeout(ActivationTimeout)
	if !ok {
		return false
	}
	if protocol.IsActivation(f) {
		return true
	}
	if f.Command() == protocol.BootCmdActivate {
		// Activation command without the magic: identify ourselves
		// before handing over to the application.
		s.send(8, bootIDLower, bootIDUpper)
	}
	return false
}

// The identification reply spells "BootFW" followed by the version,
// read as payload bytes.
const (
	bootIDLower = 0x746F6F42 // 'B','o','o','t'
	bootIDUpper = 0x00005746 | VersionMajor<<16 | VersionMinor<<24
)

// awaitWord blocks for the given command and returns its big-endian
// payload word. Other frames are ignored.
func (s *Session) awaitWord(cmd uint8) uint32 {
	for {
		f := s.recv()
		if f.Command() == cmd {
			return protocol.U32(f.Data[0], f.Data[1], f.Data[2], f.Data[3])
		}
	}
}

// eraseApplication erases every page overlapping the target region.
// Both ends round down to a page boundary; the loop is inclusive so
// the page containing the end address is always erased.
func (s *Session) eraseApplication() {
	start := ApplicationStart &^ uint32(PageSize-1)
	end := (ApplicationStart + 4*s.codeSize) &^ uint32(PageSize-1)
	for addr := start; addr <= end; addr += PageSize {
		if s.flash.ErasePage(addr) != nil {
			s.board.Halt()
			return
		}
	}
}

// download receives the image part by part. Index and checksum errors
// are counted, never fatal: the host reads the counters back through
// verify and decides whether to retry.
func (s *Session) download() {
	received := uint32(0)
	for part := uint32(0); part < s.parts; part++ {
		count := uint32(0)
		for packet := uint32(0); packet < BufferSize; packet++ {
			f := s.recv()
			if f.Command() != protocol.BootCmdData {
				s.errs[ErrUnexpectedCommand]++
			}
			gotPart, gotPacket, word, sum := protocol.DataPacket(f)
			if uint32(gotPart) != part+1 {
				s.errs[ErrWrongPart]++
			}
			if uint32(gotPacket) != packet {
				s.errs[ErrWrongPacket]++
			}
			if sum != protocol.WordSum(word) {
				s.errs[ErrChecksum]++
			}
			s.buffer[packet] = word
			count = packet + 1
			received++
			if received >= s.codeSize {
				break
			}
		}
		if s.writePart(part, count) != count {
			s.errs[ErrShortWrite]++
		}
	}
}

// writePart programs one buffered part into flash and returns how many
// words verified as written.
func (s *Session) writePart(part, count uint32) uint32 {
	base := ApplicationStart + part*4*BufferSize
	written := uint32(0)
	for i := uint32(0); i < count; i++ {
		addr := base + 4*i
		if s.flash.ProgramWord(addr, s.buffer[i]) != nil {
			s.board.Halt()
			return written
		}
		if s.flash.ReadWord(addr) != s.buffer[i] {
			continue
		}
		written++
	}
	return written
}

// verify waits for the finalize command and reports the session's
// error counters. Returns true when the download was clean.
func (s *Session) verify() bool {
	for {
		if f := s.recv(); f.Command() == protocol.BootCmdVerify {
			break
		}
	}
	clean := true
	for _, e := range s.errs {
		if e != 0 {
			clean = false
		}
	}
	if clean {
		s.send(1, 1, 0)
		return true
	}
	// Pack the five counters into the reply, one byte each after a
	// leading zero byte. Each counter is truncated to its byte so a
	// runaway count cannot bleed into its neighbor.
	lower := (s.errs[ErrUnexpectedCommand]&0xFF)<<8 |
		(s.errs[ErrWrongPart]&0xFF)<<16 |
		(s.errs[ErrWrongPacket]&0xFF)<<24
	upper := s.errs[ErrChecksum]&0xFF | (s.errs[ErrShortWrite]&0xFF)<<8
	s.send(8, lower, upper)
	return false
}

func (s *Session) send(n uint8, lower, upper uint32) {
	_ = s.tx.Send(protocol.Response(s.posID, n, lower, upper))
}

func (s *Session) recv() protocol.Frame {
	for {
		if f, ok := s.rx.Pop(); ok {
			return f
		}
		s.doPump()
		runtime.Gosched()
	}
}

func (s *Session) recvTimeout(ms uint32) (protocol.Frame, bool) {
	start := s.clock.Millis()
	for {
		if f, ok := s.rx.Pop(); ok {
			return f, true
		}
		s.doPump()
		if s.clock.Millis()-start > ms {
			return protocol.Frame{}, false
		}
		runtime.Gosched()
	}
}

func (s *Session) doPump() {
	if s.pump != nil {
		s.pump.Pump()
	}
}
