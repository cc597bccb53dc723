package bq769x0

import (
	"github.com/sigurn/crc8"
	"tinygo.org/x/drivers"
)

// Bus is the register-level contract the facade needs. Implementations own
// framing (CRC) and report failures as *BusError.
type Bus interface {
	ReadRegisters(reg byte, buf []byte) error
	WriteRegisters(reg byte, data []byte) error
}

// maxTransfer bounds one block transfer; the 15-cell voltage block is 30 bytes.
const maxTransfer = 32

// CRC-8, poly x^8 + x^2 + x + 1, init 0.
var crcTable = crc8.MakeTable(crc8.CRC8)

// I2CBus speaks the bq769x0 register protocol over any TinyGo-style I2C
// (machine.I2C on MCUs, a periph i2c.Bus on Linux). With CRC enabled every
// data byte travels with its own CRC-8.
type I2CBus struct {
	i2c  drivers.I2C
	addr uint16
	crc  bool

	// Fixed buffers to avoid per-call heap allocations.
	w [1 + 2*maxTransfer]byte
	r [2 * maxTransfer]byte
}

// NewI2CBus binds a 7-bit address. Use crc=true for the …00 and …01 parts
// and false for the …03 and …06 parts.
func NewI2CBus(i2c drivers.I2C, addr uint16, crc bool) *I2CBus {
	if addr == 0 {
		addr = AddressDefault
	}
	return &I2CBus{i2c: i2c, addr: addr, crc: crc}
}

func (b *I2CBus) ReadRegisters(reg byte, buf []byte) error {
	n := len(buf)
	if n == 0 {
		return nil
	}
	if n > maxTransfer {
		return &BusError{Op: "read", Reg: reg, Err: ErrTransferSize}
	}
	b.w[0] = reg
	if !b.crc {
		if err := b.i2c.Tx(b.addr, b.w[:1], buf); err != nil {
			return &BusError{Op: "read", Reg: reg, Err: ErrNoAcknowledge, Cause: err}
		}
		return nil
	}

	raw := b.r[:2*n]
	if err := b.i2c.Tx(b.addr, b.w[:1], raw); err != nil {
		return &BusError{Op: "read", Reg: reg, Err: ErrNoAcknowledge, Cause: err}
	}
	// First CRC covers the read address byte and data; later ones data only.
	if crc8.Checksum([]byte{byte(b.addr<<1) | 1, raw[0]}, crcTable) != raw[1] {
		return &BusError{Op: "read", Reg: reg, Err: ErrCRCMismatch}
	}
	for i := 1; i < n; i++ {
		if crc8.Checksum(raw[2*i:2*i+1], crcTable) != raw[2*i+1] {
			return &BusError{Op: "read", Reg: reg + byte(i), Err: ErrCRCMismatch}
		}
	}
	for i := range buf {
		buf[i] = raw[2*i]
	}
	return nil
}

func (b *I2CBus) WriteRegisters(reg byte, data []byte) error {
	n := len(data)
	if n == 0 {
		return nil
	}
	if n > maxTransfer {
		return &BusError{Op: "write", Reg: reg, Err: ErrTransferSize}
	}
	b.w[0] = reg
	var frame []byte
	if b.crc {
		// First CRC covers write address, register and data; later ones data only.
		b.w[1] = data[0]
		b.w[2] = crc8.Checksum([]byte{byte(b.addr << 1), reg, data[0]}, crcTable)
		for i := 1; i < n; i++ {
			b.w[1+2*i] = data[i]
			b.w[2+2*i] = crc8.Checksum(data[i:i+1], crcTable)
		}
		frame = b.w[:1+2*n]
	} else {
		copy(b.w[1:], data)
		frame = b.w[:1+n]
	}
	if err := b.i2c.Tx(b.addr, frame, nil); err != nil {
		return &BusError{Op: "write", Reg: reg, Err: ErrNoAcknowledge, Cause: err}
	}
	return nil
}
