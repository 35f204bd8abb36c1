package core

import (
	"testing"

	"fipos/protocol"
)

type fakeBus struct {
	sent []protocol.Frame
}

func (b *fakeBus) Send(f protocol.Frame) error {
	b.sent = append(b.sent, f)
	return nil
}

func (b *fakeBus) last(t *testing.T) protocol.Frame {
	t.Helper()
	if len(b.sent) == 0 {
		t.Fatal("no frame sent")
	}
	return b.sent[len(b.sent)-1]
}

type fakeFlash struct {
	words  map[uint32]uint32
	erased []uint32
}

func newFakeFlash() *fakeFlash {
	return &fakeFlash{words: make(map[uint32]uint32)}
}

func (fl *fakeFlash) ErasePage(addr uint32) error {
	page := addr &^ (FlashPageSize - 1)
	fl.erased = append(fl.erased, page)
	for a := range fl.words {
		if a >= page && a < page+FlashPageSize {
			delete(fl.words, a)
		}
	}
	return nil
}

func (fl *fakeFlash) ProgramWord(addr, value uint32) error {
	fl.words[addr] = value
	return nil
}

func (fl *fakeFlash) ReadWord(addr uint32) uint32 {
	if v, ok := fl.words[addr]; ok {
		return v
	}
	return 0xFFFFFFFF
}

type fakeUID struct{ w0, w1, w2 uint32 }

func (u fakeUID) UniqueID() (uint32, uint32, uint32) { return u.w0, u.w1, u.w2 }

type fakeTemp struct{ raw uint16 }

func (f fakeTemp) ReadRaw() uint16 { return f.raw }

type fakeSync struct{ on bool }

func (s *fakeSync) Asserted() bool { return s.on }

type fakeLEDs struct{ mask uint8 }

func (l *fakeLEDs) Set(m uint8) { l.mask = m }

type fakeClock struct{ delays []uint32 }

func (c *fakeClock) Delay(ms uint32) { c.delays = append(c.delays, ms) }

type rig struct {
	d     *Dispatcher
	ctrl  *Controller
	rx    *protocol.FrameFIFO
	bus   *fakeBus
	flash *fakeFlash
	sync  *fakeSync
	leds  *fakeLEDs
	clock *fakeClock
	m0    *fakePWM
	m1    *fakePWM
}

const testPosID = 1234

func newRig() *rig {
	r := &rig{
		rx:    protocol.NewFrameFIFO(32),
		bus:   &fakeBus{},
		flash: newFakeFlash(),
		sync:  &fakeSync{},
		leds:  &fakeLEDs{},
		clock: &fakeClock{},
		m0:    &fakePWM{},
		m1:    &fakePWM{},
	}
	r.ctrl = NewController(r.m0, r.m1, Config{})
	r.d = NewDispatcher(r.ctrl, r.rx, testPosID, Peripherals{
		Bus:   r.bus,
		Flash: r.flash,
		UID:   fakeUID{w0: 0x33313734, w1: 0x34353637, w2: 0x41424344},
		Temp:  fakeTemp{raw: 512},
		Sync:  r.sync,
		LEDs:  r.leds,
		Clock: r.clock,
	})
	return r
}

func (r *rig) push(f protocol.Frame) {
	if !r.rx.Push(f) {
		panic("test fifo full")
	}
}

// Scenario: an immediate creep of one full turn brings the phase back to
// its start and leaves the axis idle.
func TestImmediateCreepFullTurn(t *testing.T) {
	r := newRig()
	r.push(protocol.NewMove(testPosID, protocol.ExecImmediate, protocol.MoveM0CreepCW, 3600, 0))
	r.d.Poll()

	a0 := r.ctrl.Axes[0]
	a0.BumpCWCreep = false
	start := a0.Phase
	period := a0.CreepPeriod

	if !r.ctrl.Moving() {
		t.Fatal("commit not pending after immediate move")
	}
	limit := int(3600*period) + int(period) + 10
	for i := 0; i < limit; i++ {
		r.ctrl.Tick()
	}
	if r.ctrl.Moving() {
		t.Fatal("still moving after full turn")
	}
	if a0.Phase != start {
		t.Fatalf("phase = %d, want %d", a0.Phase, start)
	}
	if a0.Stages() != 0 {
		t.Fatalf("stage set not empty: %#02x", uint8(a0.Stages()))
	}
}

// Scenario: a checksum mismatch discards the table; a following execute
// command has nothing to run.
func TestChecksumMismatchDiscardsTable(t *testing.T) {
	r := newRig()
	r.push(protocol.NewMove(testPosID, protocol.ExecQueued, protocol.MoveM0CruiseCW, 500, 0))
	r.push(protocol.NewMove(testPosID, protocol.ExecLast, protocol.MoveM1CruiseCCW, 700, 0))
	r.d.Poll()
	if !r.d.filled {
		t.Fatal("table not filled")
	}

	r.push(protocol.NewTableStatus(testPosID, 0xBAD0BAD0))
	r.d.Poll()
	f := r.bus.last(t)
	if f.ID != testPosID+protocol.ResponseFlag || f.Len != 5 {
		t.Fatalf("bad status frame id=%#x len=%d", f.ID, f.Len)
	}
	if _, status := protocol.ResponseWords(f); status != protocol.TableStatusMismatch {
		t.Fatalf("status = %d, want mismatch", status)
	}
	if r.d.filled || r.d.table.Len() != 0 {
		t.Fatal("table not discarded after mismatch")
	}

	// A later execute command starts a fresh cycle and moves nothing.
	r.push(protocol.Command(testPosID, protocol.CmdExecuteTable, nil))
	r.d.Poll()
	r.ctrl.Tick()
	if r.ctrl.Moving() {
		t.Fatal("mismatched table still executed")
	}
}

func TestChecksumMatchThenExecute(t *testing.T) {
	r := newRig()
	q1 := protocol.NewMove(testPosID, protocol.ExecQueued, protocol.MoveM0CruiseCW, 500, 0)
	q2 := protocol.NewMove(testPosID, protocol.ExecLast, protocol.MoveM0CreepCW, 700, 0)
	r.push(q1)
	r.push(q2)
	r.d.Poll()

	var sum protocol.BitSum
	sum.Add(q1)
	sum.Add(q2)
	r.push(protocol.NewTableStatus(testPosID, sum.Value()))
	r.d.Poll()
	if _, status := protocol.ResponseWords(r.bus.last(t)); status != protocol.TableStatusMatch {
		t.Fatalf("status = %d, want match", status)
	}

	r.push(protocol.Command(testPosID, protocol.CmdExecuteTable, nil))
	r.d.Poll()
	r.ctrl.Tick()
	if !r.ctrl.Axes[0].Moving() {
		t.Fatal("axis 0 idle after validated execute")
	}
	if r.ctrl.Axes[0].CruiseSteps != 500 || r.ctrl.Axes[0].CWCreepSteps != 700 {
		t.Fatalf("steps = %d %d", r.ctrl.Axes[0].CruiseSteps, r.ctrl.Axes[0].CWCreepSteps)
	}
}

func TestSyncLineTriggersValidatedTable(t *testing.T) {
	r := newRig()
	q := protocol.NewMove(testPosID, protocol.ExecLast, protocol.MoveM1CreepCCW, 50, 0)
	r.push(q)
	r.d.Poll()

	var sum protocol.BitSum
	sum.Add(q)
	r.push(protocol.NewTableStatus(testPosID, sum.Value()))
	r.d.Poll()

	r.sync.on = true
	r.d.Poll()
	r.ctrl.Tick()
	if !r.ctrl.Axes[1].Moving() {
		t.Fatal("sync line did not start the table")
	}
}

func TestZeroStepMoveIsNoOp(t *testing.T) {
	r := newRig()
	r.push(protocol.NewMove(testPosID, protocol.ExecImmediate, protocol.MoveM0CruiseCW, 0, 0))
	r.d.Poll()
	r.ctrl.Tick() // consume commit
	r.ctrl.Tick()
	if r.ctrl.Moving() {
		t.Fatal("zero-step move left stages active")
	}
	if r.ctrl.Axes[0].Phase != 0 {
		t.Fatalf("rotor moved to %d", r.ctrl.Axes[0].Phase)
	}
}

func TestQueriesReply(t *testing.T) {
	r := newRig()
	cases := []struct {
		cmd   uint8
		len   uint8
		lower uint32
	}{
		{protocol.CmdGetTemperature, 2, 512},
		{protocol.CmdGetCANAddress, 2, testPosID},
		{protocol.CmdGetFirmwareVer, 1, FirmwareVersion},
		{protocol.CmdGetDeviceType, 1, 0},
		{protocol.CmdGetMoveStatus, 1, 0},
	}
	for _, c := range cases {
		r.push(protocol.Command(testPosID, c.cmd, nil))
		r.d.Poll()
		f := r.bus.last(t)
		if f.ID != testPosID+protocol.ResponseFlag {
			t.Fatalf("cmd %d: response id %#x", c.cmd, f.ID)
		}
		if f.Len != c.len {
			t.Errorf("cmd %d: len = %d, want %d", c.cmd, f.Len, c.len)
		}
		if lower, _ := protocol.ResponseWords(f); lower != c.lower {
			t.Errorf("cmd %d: lower = %d, want %d", c.cmd, lower, c.lower)
		}
	}
}

func TestUIDChallengeGatesAddressWrite(t *testing.T) {
	r := newRig()
	uid := fakeUID{w0: 0x33313734, w1: 0x34353637, w2: 0x41424344}

	// Unauthorized write must not touch flash.
	r.push(protocol.Command(testPosID, protocol.CmdWriteCANAddress, []byte{0x12, 0x34}))
	r.d.Poll()
	if len(r.flash.erased) != 0 {
		t.Fatal("write without challenge erased flash")
	}

	var lower, upper [4]byte
	protocol.PutU32(upper[:], uid.w1)
	protocol.PutU32(lower[:], uid.w0)
	r.push(protocol.Command(testPosID, protocol.CmdCheckUIDLower, append(upper[:], lower[:]...)))
	r.d.Poll()
	var w2 [4]byte
	protocol.PutU32(w2[:], uid.w2)
	r.push(protocol.Command(testPosID, protocol.CmdCheckUIDUpper, w2[:]))
	r.d.Poll()
	if !r.d.addressOK {
		t.Fatal("challenge did not authorize")
	}

	r.push(protocol.Command(testPosID, protocol.CmdWriteCANAddress, []byte{0x12, 0x34}))
	r.d.Poll()
	if r.d.posID != 0x1234 {
		t.Fatalf("posID = %#x, want 0x1234", r.d.posID)
	}
	if got := r.flash.ReadWord(AddrPosID); got != 0x1234 {
		t.Fatalf("stored address = %#x", got)
	}
	if r.d.addressOK {
		t.Fatal("authorization not consumed")
	}

	r.push(protocol.Command(0x1234, protocol.CmdReadStoredAddr, nil))
	r.d.Poll()
	if lower, _ := protocol.ResponseWords(r.bus.last(t)); lower != 0x1234 {
		t.Fatalf("read stored address = %#x", lower)
	}
}

func TestWrongUIDChallengeRejected(t *testing.T) {
	r := newRig()
	bad := make([]byte, 8)
	r.push(protocol.Command(testPosID, protocol.CmdCheckUIDLower, bad))
	r.d.Poll()
	if r.d.addressOK {
		t.Fatal("wrong uid authorized address write")
	}
}

func TestLegacyModeReinterpretsCommands(t *testing.T) {
	r := newRig()
	r.push(protocol.Command(testPosID, protocol.CmdLegacyMode, []byte{1}))
	r.d.Poll()
	if !r.d.legacyMode {
		t.Fatal("legacy mode not set")
	}

	// Command 5 now loads step counts instead of driving LEDs.
	r.push(protocol.Command(testPosID, protocol.CmdSetLED, []byte{0x01, 0x00, 0x00, 0x64, 0x02, 0x00, 0x00, 0xC8}))
	r.d.Poll()
	a0, a1 := r.ctrl.Axes[0], r.ctrl.Axes[1]
	if a0.CruiseSteps != 256 || a0.CWCreepSteps != 100 {
		t.Fatalf("axis0 steps = %d %d", a0.CruiseSteps, a0.CWCreepSteps)
	}
	if a1.CruiseSteps != 512 || a1.CWCreepSteps != 200 {
		t.Fatalf("axis1 steps = %d %d", a1.CruiseSteps, a1.CWCreepSteps)
	}
	if r.leds.mask != 0 {
		t.Fatal("legacy command 5 drove the LEDs")
	}

	// Command 7 starts raw stage sets on both axes.
	r.push(protocol.Command(testPosID, protocol.CmdExecuteTable, []byte{byte(PreloadCWCreep), byte(PreloadCWCruise)}))
	r.d.Poll()
	r.ctrl.Tick()
	if !a0.Stages().Has(StageCWCreep) {
		t.Fatal("axis0 creep not started")
	}
	if !a1.Stages().Has(StageCWSpinUp) {
		t.Fatal("axis1 cruise not started")
	}

	r.push(protocol.Command(testPosID, protocol.CmdLegacyMode, []byte{0}))
	r.d.Poll()
	if r.d.legacyMode {
		t.Fatal("legacy mode not cleared")
	}
}

func TestSetCurrentsAndPeriods(t *testing.T) {
	r := newRig()
	r.push(protocol.NewSetCurrents(testPosID, 100, 80, 30, 5, 90, 70, 20, 4))
	r.d.Poll()
	a0, a1 := r.ctrl.Axes[0], r.ctrl.Axes[1]
	if a0.SpinUpCurrent != 1.0 || a0.SpinDownCurrent != 1.0 || a0.CruiseCurrent != 0.8 {
		t.Fatalf("axis0 currents = %v %v %v", a0.SpinUpCurrent, a0.SpinDownCurrent, a0.CruiseCurrent)
	}
	if a0.CreepCurrent != 0.3 || a0.DropCurrent != 0.05 {
		t.Fatalf("axis0 creep/drop = %v %v", a0.CreepCurrent, a0.DropCurrent)
	}
	if a1.CruiseCurrent != 0.7 || a1.DropCurrent != 0.04 {
		t.Fatalf("axis1 = %v %v", a1.CruiseCurrent, a1.DropCurrent)
	}

	r.push(protocol.NewSetPeriods(testPosID, 3, 4, 20))
	r.d.Poll()
	if a0.CreepPeriod != 3 || a1.CreepPeriod != 4 || r.ctrl.SpinPeriod != 20 {
		t.Fatalf("periods = %d %d %d", a0.CreepPeriod, a1.CreepPeriod, r.ctrl.SpinPeriod)
	}
}

func TestPauseOnlyMoveDelays(t *testing.T) {
	r := newRig()
	r.push(protocol.NewMove(testPosID, protocol.ExecImmediate, protocol.MovePauseOnly, 0, 250))
	r.d.Poll()
	if len(r.clock.delays) == 0 || r.clock.delays[0] != 250 {
		t.Fatalf("delays = %v", r.clock.delays)
	}
	r.ctrl.Tick()
	if r.ctrl.Moving() {
		t.Fatal("pause-only move started motion")
	}
}

func TestFiducialCommandIsSynchronized(t *testing.T) {
	r := newRig()
	r.push(protocol.Command(testPosID, protocol.CmdSetFiducial, []byte{1, 0x80, 0x00, 0x00, 0x02}))
	r.d.Poll()
	if r.ctrl.DeviceType != 0 {
		t.Fatal("fiducial configured before trigger")
	}

	r.push(protocol.Command(testPosID, protocol.CmdExecuteTable, nil))
	r.d.Poll()
	if r.ctrl.DeviceType != 1 {
		t.Fatal("fiducial not configured")
	}
	// Duty held for the on-period, then turned off.
	if len(r.clock.delays) == 0 || r.clock.delays[len(r.clock.delays)-1] != 2000 {
		t.Fatalf("delays = %v", r.clock.delays)
	}
	if r.ctrl.FiducialDuty() != 0 {
		t.Fatalf("duty = %v after period", r.ctrl.FiducialDuty())
	}
}

func TestTestSequencePattern(t *testing.T) {
	r := newRig()
	r.push(protocol.Command(testPosID, protocol.CmdTestSequence, nil))
	r.d.Poll()
	if !r.ctrl.TestSequence() {
		t.Fatal("test sequence not enabled")
	}
	r.ctrl.Tick()
	if r.m0.duty != [3]uint16{1000, 2000, 3000} || r.m1.duty != [3]uint16{1000, 2000, 3000} {
		t.Fatalf("pattern = %v %v", r.m0.duty, r.m1.duty)
	}
	r.push(protocol.Command(testPosID, protocol.CmdTestSequence, nil))
	r.d.Poll()
	if r.ctrl.TestSequence() {
		t.Fatal("test sequence not toggled off")
	}
}

func TestUnknownCommandCounted(t *testing.T) {
	r := newRig()
	r.push(protocol.Command(testPosID, 99, nil))
	r.d.Poll()
	if got := r.d.Registry().Unknown(); got != 1 {
		t.Fatalf("unknown count = %d", got)
	}
	if len(r.bus.sent) != 0 {
		t.Fatal("unknown command produced a reply")
	}
}

// fakePump models a controller whose frames must be polled out: they
// sit in the chip buffer until Pump moves them to the FIFO.
type fakePump struct {
	rx     *protocol.FrameFIFO
	buffer []protocol.Frame
	calls  int
}

func (p *fakePump) Pump() {
	p.calls++
	for _, f := range p.buffer {
		p.rx.Push(f)
	}
	p.buffer = nil
}

func TestPolledReceivePumpsChipBuffer(t *testing.T) {
	r := newRig()
	pump := &fakePump{rx: r.rx}
	r.d.p.Pump = pump

	// The frame never reaches the FIFO on its own, as if it had landed
	// while the interrupt line was already asserted.
	pump.buffer = append(pump.buffer,
		protocol.Command(testPosID, protocol.CmdGetFirmwareVer, nil))

	r.d.Poll()
	if pump.calls == 0 {
		t.Fatal("wait loop never polled the chip buffer")
	}
	got := r.bus.last(t)
	if lower, _ := protocol.ResponseWords(got); lower != FirmwareVersion {
		t.Fatalf("firmware version = %d", lower)
	}
}
