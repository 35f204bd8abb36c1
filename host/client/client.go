// Package client speaks the positioner command protocol from the host
// side: queries, move tables, addressing, and firmware download.
package client

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"fipos/host/canio"
	"fipos/protocol"
)

// ErrNoReply is returned when the positioner does not answer a request
// within the receive budget.
var ErrNoReply = errors.New("client: no reply from positioner")

// receiveBudget is how many foreign frames a request skips before
// giving up on a reply.
const receiveBudget = 64

// Client drives one positioner over a bus connection.
type Client struct {
	bus canio.Bus
	id  uint32

	queued []protocol.Frame
	sum    protocol.BitSum
}

func New(bus canio.Bus, posID uint32) *Client {
	return &Client{bus: bus, id: posID}
}

// ID returns the positioner address this client talks to.
func (c *Client) ID() uint32 { return c.id }

// Send transmits a raw command frame without waiting for a reply.
func (c *Client) Send(cmd uint8, data []byte) error {
	return c.bus.Send(protocol.Command(c.id, cmd, data))
}

// request sends a command and waits for the positioner's response
// frame, skipping traffic addressed elsewhere.
func (c *Client) request(cmd uint8, data []byte) (protocol.Frame, error) {
	if err := c.Send(cmd, data); err != nil {
		return protocol.Frame{}, err
	}
	return c.awaitResponse()
}

func (c *Client) awaitResponse() (protocol.Frame, error) {
	want := c.id + protocol.ResponseFlag
	for i := 0; i < receiveBudget; i++ {
		f, err := c.bus.Receive()
		if err != nil {
			return protocol.Frame{}, err
		}
		if f.ID == want {
			return f, nil
		}
		log.WithField("id", fmt.Sprintf("%#x", f.ID)).Debug("skipping foreign frame")
	}
	return protocol.Frame{}, ErrNoReply
}

func (c *Client) queryLower(cmd uint8) (uint32, error) {
	f, err := c.request(cmd, nil)
	if err != nil {
		return 0, err
	}
	lower, _ := protocol.ResponseWords(f)
	return lower, nil
}

func (c *Client) FirmwareVersion() (uint32, error) {
	return c.queryLower(protocol.CmdGetFirmwareVer)
}

func (c *Client) Temperature() (uint32, error) {
	return c.queryLower(protocol.CmdGetTemperature)
}

func (c *Client) DeviceType() (uint32, error) {
	return c.queryLower(protocol.CmdGetDeviceType)
}

func (c *Client) Address() (uint32, error) {
	return c.queryLower(protocol.CmdGetCANAddress)
}

func (c *Client) StoredAddress() (uint32, error) {
	return c.queryLower(protocol.CmdReadStoredAddr)
}

func (c *Client) Moving() (bool, error) {
	v, err := c.queryLower(protocol.CmdGetMoveStatus)
	return v != 0, err
}

// UID reads the full 96-bit silicon id.
func (c *Client) UID() (w0, w1, w2 uint32, err error) {
	f, err := c.request(protocol.CmdReadUIDLower, nil)
	if err != nil {
		return 0, 0, 0, err
	}
	w0, w1 = protocol.ResponseWords(f)
	w2, err = c.queryLower(protocol.CmdReadUIDUpper)
	return w0, w1, w2, err
}

// QueueMove stages one move in the local table mirror and sends it to
// the positioner as a queued table entry.
func (c *Client) QueueMove(moveType uint8, steps uint32, pauseMS uint16) error {
	f := protocol.NewMove(c.id, protocol.ExecQueued, moveType, steps, pauseMS)
	return c.queue(f)
}

// FinishTable marks the last queued entry, validates the checksum with
// the positioner, and leaves it armed for Execute or the sync line.
func (c *Client) FinishTable(moveType uint8, steps uint32, pauseMS uint16) error {
	f := protocol.NewMove(c.id, protocol.ExecLast, moveType, steps, pauseMS)
	if err := c.queue(f); err != nil {
		return err
	}
	return c.validate()
}

func (c *Client) queue(f protocol.Frame) error {
	if err := c.bus.Send(f); err != nil {
		return err
	}
	c.queued = append(c.queued, f)
	c.sum.Add(f)
	return nil
}

// validate compares checksums with the positioner and resets the local
// mirror. A mismatch also discards the table on the positioner, so the
// caller simply requeues.
func (c *Client) validate() error {
	expected := c.sum.Value()
	c.queued = c.queued[:0]
	c.sum.Reset()

	f, err := c.request(protocol.CmdTableStatus, frameSum(expected))
	if err != nil {
		return err
	}
	deviceSum, status := protocol.ResponseWords(f)
	if status != protocol.TableStatusMatch {
		return fmt.Errorf("client: table checksum mismatch (host %#x, positioner %#x)", expected, deviceSum)
	}
	return nil
}

func frameSum(v uint32) []byte {
	var b [4]byte
	protocol.PutU32(b[:], v)
	return b[:]
}

// MoveNow sends a single immediate move.
func (c *Client) MoveNow(moveType uint8, steps uint32, pauseMS uint16) error {
	return c.bus.Send(protocol.NewMove(c.id, protocol.ExecImmediate, moveType, steps, pauseMS))
}

// Execute triggers a validated table.
func (c *Client) Execute() error {
	return c.Send(protocol.CmdExecuteTable, nil)
}

func (c *Client) SetCurrents(spinUp0, cruise0, creep0, drop0, spinUp1, cruise1, creep1, drop1 uint8) error {
	return c.bus.Send(protocol.NewSetCurrents(c.id, spinUp0, cruise0, creep0, drop0, spinUp1, cruise1, creep1, drop1))
}

func (c *Client) SetPeriods(creep0, creep1, spin uint8) error {
	return c.bus.Send(protocol.NewSetPeriods(c.id, creep0, creep1, spin))
}

func (c *Client) SetLED(state uint8) error {
	return c.Send(protocol.CmdSetLED, []byte{state})
}

func (c *Client) ToggleTestSequence() error {
	return c.Send(protocol.CmdTestSequence, nil)
}

func (c *Client) SetLegacyMode(on bool) error {
	v := byte(0)
	if on {
		v = 1
	}
	return c.Send(protocol.CmdLegacyMode, []byte{v})
}

// WriteAddress reprograms the positioner's bus address. The positioner
// only accepts the write after a unique-id challenge, which this runs
// first; afterwards the client follows the device to its new address.
func (c *Client) WriteAddress(newID uint32) error {
	w0, w1, w2, err := c.UID()
	if err != nil {
		return fmt.Errorf("client: uid read: %w", err)
	}

	var challenge [8]byte
	protocol.PutU32(challenge[:4], w1)
	protocol.PutU32(challenge[4:], w0)
	if err := c.Send(protocol.CmdCheckUIDLower, challenge[:]); err != nil {
		return err
	}
	if err := c.Send(protocol.CmdCheckUIDUpper, frameSum(w2)); err != nil {
		return err
	}
	if err := c.Send(protocol.CmdWriteCANAddress, []byte{byte(newID >> 8), byte(newID)}); err != nil {
		return err
	}

	old := c.id
	c.id = newID
	stored, err := c.StoredAddress()
	if err != nil {
		c.id = old
		return fmt.Errorf("client: readback after address write: %w", err)
	}
	if stored != newID {
		c.id = old
		return fmt.Errorf("client: address readback = %d, want %d", stored, newID)
	}
	log.WithFields(log.Fields{"old": old, "new": newID}).Info("positioner readdressed")
	return nil
}
