package client

import (
	"encoding/binary"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"fipos/boot"
	"fipos/protocol"
)

// FlashReport is the bootloader's verdict on a download.
type FlashReport struct {
	OK                bool
	UnexpectedCommand uint8
	WrongPart         uint8
	WrongPacket       uint8
	Checksum          uint8
	ShortWrite        uint8
}

func (r FlashReport) String() string {
	if r.OK {
		return "download verified"
	}
	return fmt.Sprintf("download failed: cmd=%d part=%d packet=%d checksum=%d write=%d",
		r.UnexpectedCommand, r.WrongPart, r.WrongPacket, r.Checksum, r.ShortWrite)
}

// Flash pushes a firmware image through the bootloader protocol. The
// positioner must be reset just before so the loader is still inside
// its activation window. gap paces the data packets; zero is fine on
// SocketCAN, serial adapters need a little breathing room.
func (c *Client) Flash(image []byte, gap time.Duration) (FlashReport, error) {
	words := packWords(image)
	parts := (len(words) + boot.BufferSize - 1) / boot.BufferSize

	log.WithFields(log.Fields{
		"bytes": len(image),
		"words": len(words),
		"parts": parts,
	}).Info("starting download")

	if err := c.bus.Send(protocol.NewActivation(c.id)); err != nil {
		return FlashReport{}, err
	}
	if _, err := c.awaitResponse(); err != nil {
		return FlashReport{}, fmt.Errorf("client: loader did not activate: %w", err)
	}
	if err := c.bus.Send(protocol.NewCodeSize(c.id, uint32(len(words)))); err != nil {
		return FlashReport{}, err
	}
	if err := c.bus.Send(protocol.NewPartCount(c.id, uint32(parts))); err != nil {
		return FlashReport{}, err
	}

	for i, w := range words {
		part := uint8(i/boot.BufferSize) + 1
		packet := uint16(i % boot.BufferSize)
		if err := c.bus.Send(protocol.NewDataPacket(c.id, part, packet, w)); err != nil {
			return FlashReport{}, fmt.Errorf("client: word %d: %w", i, err)
		}
		if gap > 0 {
			time.Sleep(gap)
		}
		if (i+1)%1000 == 0 {
			log.WithField("words", i+1).Debug("download progress")
		}
	}

	if err := c.bus.Send(protocol.NewVerify(c.id)); err != nil {
		return FlashReport{}, err
	}
	f, err := c.awaitResponse()
	if err != nil {
		return FlashReport{}, fmt.Errorf("client: no verify report: %w", err)
	}
	return parseReport(f)
}

func parseReport(f protocol.Frame) (FlashReport, error) {
	switch f.Len {
	case 1:
		if f.Data[0] == 1 {
			return FlashReport{OK: true}, nil
		}
		return FlashReport{}, fmt.Errorf("client: unexpected verify ack %d", f.Data[0])
	case 8:
		return FlashReport{
			UnexpectedCommand: f.Data[1],
			WrongPart:         f.Data[2],
			WrongPacket:       f.Data[3],
			Checksum:          f.Data[4],
			ShortWrite:        f.Data[5],
		}, nil
	default:
		return FlashReport{}, fmt.Errorf("client: malformed verify report, len %d", f.Len)
	}
}

// packWords splits the image into little-endian words, padding the
// tail with erased-flash bytes.
func packWords(image []byte) []uint32 {
	words := make([]uint32, 0, (len(image)+3)/4)
	for len(image) >= 4 {
		words = append(words, binary.LittleEndian.Uint32(image))
		image = image[4:]
	}
	if len(image) > 0 {
		var tail [4]byte
		tail[0], tail[1], tail[2], tail[3] = 0xFF, 0xFF, 0xFF, 0xFF
		copy(tail[:], image)
		words = append(words, binary.LittleEndian.Uint32(tail[:]))
	}
	return words
}
