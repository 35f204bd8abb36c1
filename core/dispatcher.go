package core

import (
	"runtime"

	"fipos/protocol"
)

// Peripherals collects the hardware the dispatcher talks to. Targets
// fill it from their registered drivers; tests supply fakes.
type Peripherals struct {
	Bus    Bus
	Flash  Flash
	UID    IDReader
	Temp   Thermometer
	Sync   SyncLine
	LEDs   LEDs
	Clock  Clock
	Filter AddressFilter // optional
	Pump   Pumper        // optional
}

// Dispatcher is the foreground command loop. It drains the receive FIFO
// one frame at a time, buffers move tables, and replays them on a
// trigger. It never runs concurrently with itself; the only other
// execution context is the tick interrupt, reached through the
// controller's commit signal.
type Dispatcher struct {
	ctrl *Controller
	rx   *protocol.FrameFIFO
	reg  *CommandRegistry
	p    Peripherals

	posID uint32

	table    MoveTable
	filled   bool
	sumMatch bool

	legacyMode  bool
	addressOK   bool
	flagPending [2]bool
}

// NewDispatcher wires a dispatcher over the controller and the receive
// FIFO filled by the CAN driver. posID is the positioner's bus address.
func NewDispatcher(ctrl *Controller, rx *protocol.FrameFIFO, posID uint32, p Peripherals) *Dispatcher {
	d := &Dispatcher{
		ctrl:  ctrl,
		rx:    rx,
		reg:   NewCommandRegistry(),
		p:     p,
		posID: posID,
	}
	d.registerCommands()
	return d
}

// PosID returns the current bus address.
func (d *Dispatcher) PosID() uint32 { return d.posID }

// Registry exposes the command set, mainly for introspection in tests
// and host tooling.
func (d *Dispatcher) Registry() *CommandRegistry { return d.reg }

// Run is the firmware main loop.
func (d *Dispatcher) Run() {
	for {
		d.Poll()
	}
}

// Poll performs one loop iteration: fill a table if none is pending,
// otherwise service trigger/status frames, then execute when triggered.
// Exposed so tests can drive the loop a step at a time.
func (d *Dispatcher) Poll() {
	d.pump()
	executeNow := false
	if !d.filled {
		executeNow = d.fill()
	} else if f, ok := d.rx.Pop(); ok {
		executeNow = d.awaitFrame(f)
	}
	if d.filled && d.sumMatch && (executeNow || d.p.Sync.Asserted()) {
		d.execute()
	}
}

// fill buffers frames until the table is complete: a queued-move run
// ended by a last marker, or a single command. Returns true when the
// table should execute without waiting for a trigger.
func (d *Dispatcher) fill() bool {
	d.table.Reset()
	d.sumMatch = false
	immediate := false
	for !d.table.Full() {
		f := d.recv()
		switch {
		case f.Command() == protocol.CmdSetMove && !d.legacyMode:
			switch (f.Data[0] >> 4) & 0x3 {
			case protocol.ExecImmediate:
				d.table.Reset()
				d.table.Push(f, false)
				d.sumMatch = true
				immediate = true
			case protocol.ExecQueued:
				d.table.Push(f, true)
				continue
			case protocol.ExecLast:
				d.table.Push(f, true)
			default:
				// Out-of-range execute code: buffer the frame but keep
				// it out of the checksum, matching deployed behavior.
				d.table.Push(f, false)
				continue
			}
		case f.Command() == protocol.CmdSetFiducial && !d.legacyMode:
			// Fiducial setup is synchronized: it waits for the sync
			// line or an explicit execute.
			d.table.Reset()
			d.table.Push(f, false)
			d.sumMatch = true
		default:
			d.table.Reset()
			d.table.Push(f, false)
			d.sumMatch = true
			immediate = true
		}
		break
	}
	d.filled = true
	return immediate
}

// awaitFrame services the few commands accepted while a filled table
// waits for its trigger. Anything else is dropped. Returns true on an
// explicit execute command.
func (d *Dispatcher) awaitFrame(f protocol.Frame) bool {
	switch f.Command() {
	case protocol.CmdExecuteTable:
		return true

	case protocol.CmdGetMoveStatus:
		d.sendMoveStatus()

	case protocol.CmdTableStatus:
		want := protocol.U32(f.Data[0], f.Data[1], f.Data[2], f.Data[3])
		sum := d.table.Sum()
		if want == sum {
			d.sumMatch = true
			d.send(5, sum, protocol.TableStatusMatch)
		} else {
			d.send(5, sum, protocol.TableStatusMismatch)
			d.table.Reset()
			d.filled = false
		}
		d.table.ResetSum()
	}
	return false
}

// execute replays the buffered table in order and resets it for the
// next batch.
func (d *Dispatcher) execute() {
	d.sumMatch = false
	for _, f := range d.table.Frames() {
		_ = d.reg.Dispatch(f)
	}
	d.table.Reset()
	d.filled = false
}

// recv blocks until the CAN driver hands over the next accepted frame.
// Frame arrival is the only external event the firmware reacts to, so
// a spin here is fine. The pump keeps a level-asserted controller
// drained while waiting.
func (d *Dispatcher) recv() protocol.Frame {
	for {
		if f, ok := d.rx.Pop(); ok {
			return f
		}
		d.pump()
		runtime.Gosched()
	}
}

func (d *Dispatcher) pump() {
	if d.p.Pump != nil {
		d.p.Pump.Pump()
	}
}

func (d *Dispatcher) send(n uint8, lower, upper uint32) {
	_ = d.p.Bus.Send(protocol.Response(d.posID, n, lower, upper))
}

func (d *Dispatcher) sendMoveStatus() {
	v := uint32(0)
	if d.ctrl.Moving() {
		v = 1
	}
	d.send(1, v, 0)
}
