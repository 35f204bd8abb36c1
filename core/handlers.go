package core

import "fipos/protocol"

// FirmwareVersion is reported by the firmware-version query.
const FirmwareVersion = 10

func (d *Dispatcher) registerCommands() {
	r := d.reg
	r.Register(protocol.CmdSetCurrents, "set_currents", d.handleSetCurrents)
	r.Register(protocol.CmdSetPeriods, "set_periods", d.handleSetPeriods)
	r.Register(protocol.CmdSetMove, "set_move", d.handleSetMove)
	r.Register(protocol.CmdSetLED, "set_led", d.handleSetLED)
	r.Register(protocol.CmdTestSequence, "test_sequence", d.handleTestSequence)
	r.Register(protocol.CmdExecuteTable, "execute_table", d.handleExecuteTable)
	r.Register(protocol.CmdTableStatus, "table_status", d.handleTableStatus)
	r.Register(protocol.CmdGetTemperature, "get_temperature", d.handleGetTemperature)
	r.Register(protocol.CmdGetCANAddress, "get_can_address", d.handleGetCANAddress)
	r.Register(protocol.CmdGetFirmwareVer, "get_firmware_version", d.handleGetFirmwareVer)
	r.Register(protocol.CmdGetDeviceType, "get_device_type", d.handleGetDeviceType)
	r.Register(protocol.CmdGetMoveStatus, "get_move_status", d.handleGetMoveStatus)
	r.Register(protocol.CmdGetCurrentMon1, "get_current_mon1", nil)
	r.Register(protocol.CmdGetCurrentMon2, "get_current_mon2", nil)
	r.Register(protocol.CmdSetFiducial, "set_fiducial", d.handleSetFiducial)
	r.Register(protocol.CmdReadUIDLower, "read_uid_lower", d.handleReadUIDLower)
	r.Register(protocol.CmdReadUIDUpper, "read_uid_upper", d.handleReadUIDUpper)
	r.Register(protocol.CmdReadUIDShort, "read_uid_short", d.handleReadUIDShort)
	r.Register(protocol.CmdWriteCANAddress, "write_can_address", d.handleWriteCANAddress)
	r.Register(protocol.CmdReadStoredAddr, "read_stored_address", d.handleReadStoredAddr)
	r.Register(protocol.CmdCheckUIDLower, "check_uid_lower", d.handleCheckUIDLower)
	r.Register(protocol.CmdCheckUIDUpper, "check_uid_upper", d.handleCheckUIDUpper)
	r.Register(protocol.CmdCheckUIDShort, "check_uid_short", d.handleCheckUIDShort)
	r.Register(protocol.CmdLegacyMode, "set_legacy_mode", d.handleLegacyMode)
	r.Register(protocol.CmdFirmware, "firmware", nil)
}

func (d *Dispatcher) handleSetCurrents(f protocol.Frame) error {
	a0, a1 := d.ctrl.Axes[0], d.ctrl.Axes[1]
	a0.SpinUpCurrent = float32(f.Data[0]) / 100
	a0.SpinDownCurrent = a0.SpinUpCurrent
	a0.CruiseCurrent = float32(f.Data[1]) / 100
	a0.CreepCurrent = float32(f.Data[2]) / 100
	a1.SpinUpCurrent = float32(f.Data[4]) / 100
	a1.SpinDownCurrent = a1.SpinUpCurrent
	a1.CruiseCurrent = float32(f.Data[5]) / 100
	a1.CreepCurrent = float32(f.Data[6]) / 100
	if !d.legacyMode {
		a0.DropCurrent = float32(f.Data[3]) / 100
		a1.DropCurrent = float32(f.Data[7]) / 100
	}
	return nil
}

func (d *Dispatcher) handleSetPeriods(f protocol.Frame) error {
	a0, a1 := d.ctrl.Axes[0], d.ctrl.Axes[1]
	if !d.legacyMode {
		a0.CreepPeriod = uint32(f.Data[0])
		a1.CreepPeriod = uint32(f.Data[1])
		d.ctrl.SpinPeriod = uint32(f.Data[2])
	} else {
		a0.CreepPeriod = protocol.U16(f.Data[0], f.Data[1])
		a1.CreepPeriod = protocol.U16(f.Data[4], f.Data[5])
	}
	return nil
}

func (d *Dispatcher) handleSetMove(f protocol.Frame) error {
	if d.legacyMode {
		// Legacy payload carries the creep bump enables.
		a0, a1 := d.ctrl.Axes[0], d.ctrl.Axes[1]
		a0.BumpCWCreep = f.Data[4]&32 != 0
		a0.BumpCCWCreep = f.Data[4]&16 != 0
		a1.BumpCWCreep = f.Data[4]&2 != 0
		a1.BumpCCWCreep = f.Data[4]&1 != 0
		return nil
	}

	moveType := f.Data[0] & 0x0F
	execCode := (f.Data[0] >> 4) & 0x3
	steps := protocol.U24(f.Data[1], f.Data[2], f.Data[3])
	pause := protocol.U16(f.Data[4], f.Data[5])
	a0, a1 := d.ctrl.Axes[0], d.ctrl.Axes[1]

	switch moveType {
	case protocol.MoveM0CreepCW:
		a0.CWCreepSteps = steps
		a0.SetShadow(PreloadCWCreep)
		d.flagPending[0] = true
	case protocol.MoveM0CreepCCW:
		a0.CCWCreepSteps = steps
		a0.SetShadow(PreloadCCWCreep)
		d.flagPending[0] = true
	case protocol.MoveM0CruiseCW:
		a0.CruiseSteps = steps
		a0.SetShadow(PreloadCWCruise)
		d.flagPending[0] = true
	case protocol.MoveM0CruiseCCW:
		a0.CruiseSteps = steps
		a0.SetShadow(PreloadCCWCruise)
		d.flagPending[0] = true
	case protocol.MoveM1CreepCW:
		a1.CWCreepSteps = steps
		a1.SetShadow(PreloadCWCreep)
		d.flagPending[1] = true
	case protocol.MoveM1CreepCCW:
		a1.CCWCreepSteps = steps
		a1.SetShadow(PreloadCCWCreep)
		d.flagPending[1] = true
	case protocol.MoveM1CruiseCW:
		a1.CruiseSteps = steps
		a1.SetShadow(PreloadCWCruise)
		d.flagPending[1] = true
	case protocol.MoveM1CruiseCCW:
		a1.CruiseSteps = steps
		a1.SetShadow(PreloadCCWCruise)
		d.flagPending[1] = true
	case protocol.MovePauseOnly:
		d.p.Clock.Delay(pause)
		return nil
	default:
		return nil
	}

	// Commit now unless more table commands must be staged first. A
	// nonzero pause always commits: the pause exists to let the move
	// finish before the next command lands.
	if pause != 0 || execCode == protocol.ExecImmediate || execCode == protocol.ExecLast {
		d.commitPending()
	}
	d.p.Clock.Delay(pause)
	return nil
}

// commitPending trims zero-step stages from both shadows and raises the
// commit signal for whichever axes have staged moves.
func (d *Dispatcher) commitPending() {
	a0, a1 := d.ctrl.Axes[0], d.ctrl.Axes[1]
	a0.SetShadow(a0.Shadow().TrimZeroSteps(a0.CruiseSteps, a0.CWCreepSteps, a0.CCWCreepSteps))
	a1.SetShadow(a1.Shadow().TrimZeroSteps(a1.CruiseSteps, a1.CWCreepSteps, a1.CCWCreepSteps))
	switch {
	case d.flagPending[0] && d.flagPending[1]:
		d.ctrl.Commit(CommitBoth)
	case d.flagPending[0]:
		d.ctrl.Commit(CommitAxis0)
	case d.flagPending[1]:
		d.ctrl.Commit(CommitAxis1)
	}
	d.flagPending[0], d.flagPending[1] = false, false
}

func (d *Dispatcher) handleSetLED(f protocol.Frame) error {
	if d.legacyMode {
		// Legacy payload sets cruise and CW creep step counts directly.
		a0, a1 := d.ctrl.Axes[0], d.ctrl.Axes[1]
		a0.CruiseSteps = protocol.U16(f.Data[0], f.Data[1])
		a0.CWCreepSteps = protocol.U16(f.Data[2], f.Data[3])
		a1.CruiseSteps = protocol.U16(f.Data[4], f.Data[5])
		a1.CWCreepSteps = protocol.U16(f.Data[6], f.Data[7])
		return nil
	}
	d.p.LEDs.Set(f.Data[0])
	return nil
}

func (d *Dispatcher) handleTestSequence(f protocol.Frame) error {
	if d.legacyMode {
		// Legacy payload sets the creep step counts directly.
		a0, a1 := d.ctrl.Axes[0], d.ctrl.Axes[1]
		a0.CCWCreepSteps = protocol.U16(f.Data[0], f.Data[1])
		a0.CWCreepSteps = protocol.U16(f.Data[2], f.Data[3])
		a1.CCWCreepSteps = protocol.U16(f.Data[4], f.Data[5])
		a1.CWCreepSteps = protocol.U16(f.Data[6], f.Data[7])
		return nil
	}
	d.ctrl.SetTestSequence(!d.ctrl.TestSequence())
	return nil
}

func (d *Dispatcher) handleExecuteTable(f protocol.Frame) error {
	if !d.legacyMode {
		// Inside a table the trigger has already fired; nothing to do.
		return nil
	}
	// Legacy start: raw stage sets straight from the payload.
	a0, a1 := d.ctrl.Axes[0], d.ctrl.Axes[1]
	a0.SetShadow(StageSet(f.Data[0]).TrimZeroSteps(a0.CruiseSteps, a0.CWCreepSteps, a0.CCWCreepSteps))
	a1.SetShadow(StageSet(f.Data[1]).TrimZeroSteps(a1.CruiseSteps, a1.CWCreepSteps, a1.CCWCreepSteps))
	d.ctrl.Commit(CommitBoth)
	return nil
}

func (d *Dispatcher) handleTableStatus(f protocol.Frame) error {
	// A status command buffered in the table itself means the previous
	// validation already passed; report ready for the next table.
	d.send(5, d.table.Sum(), protocol.TableStatusReady)
	return nil
}

func (d *Dispatcher) handleGetTemperature(f protocol.Frame) error {
	d.send(2, uint32(d.p.Temp.ReadRaw()), 0)
	return nil
}

func (d *Dispatcher) handleGetCANAddress(f protocol.Frame) error {
	d.send(2, d.posID, 0)
	return nil
}

func (d *Dispatcher) handleGetFirmwareVer(f protocol.Frame) error {
	d.send(1, FirmwareVersion, 0)
	return nil
}

func (d *Dispatcher) handleGetDeviceType(f protocol.Frame) error {
	d.send(1, uint32(d.ctrl.DeviceType), 0)
	return nil
}

func (d *Dispatcher) handleGetMoveStatus(f protocol.Frame) error {
	d.sendMoveStatus()
	return nil
}

func (d *Dispatcher) handleSetFiducial(f protocol.Frame) error {
	d.ctrl.DeviceType = f.Data[0]
	if f.Data[0] == 0 {
		return nil
	}
	duty := float32(protocol.U16(f.Data[1], f.Data[2])) / 65536
	d.ctrl.SetFiducialDuty(duty)
	d.p.Clock.Delay(protocol.U16(f.Data[3], f.Data[4]) * 1000)
	d.ctrl.SetFiducialDuty(0)
	return nil
}

func (d *Dispatcher) handleReadUIDLower(f protocol.Frame) error {
	w0, w1, _ := d.p.UID.UniqueID()
	d.send(8, w0, w1)
	return nil
}

func (d *Dispatcher) handleReadUIDUpper(f protocol.Frame) error {
	_, _, w2 := d.p.UID.UniqueID()
	d.send(4, w2, 0)
	return nil
}

func (d *Dispatcher) handleReadUIDShort(f protocol.Frame) error {
	lower, upper := shortUID(d.p.UID.UniqueID())
	d.send(8, lower, upper)
	return nil
}

func (d *Dispatcher) handleWriteCANAddress(f protocol.Frame) error {
	if d.addressOK {
		d.posID = protocol.U16(f.Data[0], f.Data[1])
		if err := d.p.Flash.ErasePage(AddrPosID); err != nil {
			d.addressOK = false
			return err
		}
		if err := d.p.Flash.ProgramWord(AddrPosID, d.posID); err != nil {
			d.addressOK = false
			return err
		}
	}
	d.addressOK = false
	if d.p.Filter != nil {
		return d.p.Filter.SetAddress(d.posID)
	}
	return nil
}

func (d *Dispatcher) handleReadStoredAddr(f protocol.Frame) error {
	d.send(2, d.p.Flash.ReadWord(AddrPosID)&0xFFFF, 0)
	return nil
}

func (d *Dispatcher) handleCheckUIDLower(f protocol.Frame) error {
	w0, w1, _ := d.p.UID.UniqueID()
	lower := protocol.U32(f.Data[4], f.Data[5], f.Data[6], f.Data[7])
	upper := protocol.U32(f.Data[0], f.Data[1], f.Data[2], f.Data[3])
	if w0 == lower && w1 == upper {
		d.addressOK = true
	}
	return nil
}

func (d *Dispatcher) handleCheckUIDUpper(f protocol.Frame) error {
	_, _, w2 := d.p.UID.UniqueID()
	d.addressOK = d.addressOK && w2 == protocol.U32(f.Data[0], f.Data[1], f.Data[2], f.Data[3])
	return nil
}

func (d *Dispatcher) handleCheckUIDShort(f protocol.Frame) error {
	lower, upper := shortUID(d.p.UID.UniqueID())
	lowerRcv := protocol.U32(f.Data[4], f.Data[5], f.Data[6], f.Data[7])
	upperRcv := protocol.U32(f.Data[0], f.Data[1], f.Data[2], f.Data[3])
	if lower == lowerRcv && upper == upperRcv {
		d.addressOK = true
	}
	return nil
}

func (d *Dispatcher) handleLegacyMode(f protocol.Frame) error {
	d.legacyMode = f.Data[0] != 0
	return nil
}

// shortUID compresses the 96-bit silicon id into 64 bits. The lot
// characters in the id are ASCII digits or letters; each byte keeps its
// low nibble and maps the high nibble (3, 4, or other) into two bits.
func shortUID(w0, w1, w2 uint32) (lower, upper uint32) {
	lower = squeeze(byte(w0))
	for i := 0; i < 4; i++ {
		lower |= squeeze(byte(w1>>(8*i))) << (6 + 6*i)
	}
	upper = w2 & 0x00FFFFFF
	upper |= squeeze(byte(w2>>24)) << 24
	return lower, upper
}

func squeeze(b byte) uint32 {
	v := uint32(b & 0x0F)
	switch b >> 4 {
	case 3:
	case 4:
		v |= 1 << 4
	default:
		v |= 2 << 4
	}
	return v
}
