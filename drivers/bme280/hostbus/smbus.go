package hostbus

import (
	"golang.org/x/xerrors"
)

// maxBlock is the SMBus block transfer limit.
const maxBlock = 32

// blockConn is the part of an SMBus connection the transport needs.
type blockConn interface {
	ReadBlockData(addr, reg uint8, buf []byte) error
	WriteReg(addr, reg, v uint8) error
}

// SMBus is a bme280.Transport over SMBus block reads and byte writes.
type SMBus struct {
	conn blockConn
	addr uint8
}

func (s *SMBus) ReadRegister(reg uint8, buf []byte) error {
	for off := 0; off < len(buf); off += maxBlock {
		end := off + maxBlock
		if end > len(buf) {
			end = len(buf)
		}
		if err := s.conn.ReadBlockData(s.addr, reg+uint8(off), buf[off:end]); err != nil {
			return xerrors.Errorf("smbus read 0x%02x: %w", reg+uint8(off), err)
		}
	}
	return nil
}

// WriteRegister writes data to consecutive registers one byte at a time.
func (s *SMBus) WriteRegister(reg uint8, data []byte) error {
	for i, v := range data {
		if err := s.conn.WriteReg(s.addr, reg+uint8(i), v); err != nil {
			return xerrors.Errorf("smbus write 0x%02x: %w", reg+uint8(i), err)
		}
	}
	return nil
}
