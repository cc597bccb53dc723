package bq769x0

import (
	"errors"
	"testing"

	"tinygo.org/x/drivers"
)

var _ drivers.I2C = (*fakeI2C)(nil)
var _ Bus = (*I2CBus)(nil)
var _ Bus = (*SimBus)(nil)

// crc8ref is a bitwise CRC-8 (poly 0x07), independent of the table code.
func crc8ref(b ...byte) byte {
	var c byte
	for _, v := range b {
		c ^= v
		for i := 0; i < 8; i++ {
			if c&0x80 != 0 {
				c = c<<1 ^ 0x07
			} else {
				c <<= 1
			}
		}
	}
	return c
}

// fakeI2C answers register reads and writes the way the AFE does on the
// wire, optionally with per-byte CRC.
type fakeI2C struct {
	addr    uint16
	crc     bool
	regs    [256]byte
	nack    bool
	corrupt int // index of the read byte whose CRC is flipped; -1 for none
	badCRC  bool
}

func newFakeI2C(crc bool) *fakeI2C {
	return &fakeI2C{addr: AddressDefault, crc: crc, corrupt: -1}
}

func (f *fakeI2C) Tx(addr uint16, w, r []byte) error {
	if f.nack || addr != f.addr || len(w) == 0 {
		return errors.New("nack")
	}
	reg := w[0]
	if len(r) > 0 {
		if !f.crc {
			copy(r, f.regs[reg:])
			return nil
		}
		for i := 0; i < len(r)/2; i++ {
			d := f.regs[int(reg)+i]
			c := crc8ref(d)
			if i == 0 {
				c = crc8ref(byte(addr<<1)|1, d)
			}
			if i == f.corrupt {
				c ^= 0xFF
			}
			r[2*i], r[2*i+1] = d, c
		}
		return nil
	}

	data := w[1:]
	if !f.crc {
		copy(f.regs[reg:], data)
		return nil
	}
	if len(data)%2 != 0 {
		return errors.New("short frame")
	}
	for i := 0; i < len(data)/2; i++ {
		d, c := data[2*i], data[2*i+1]
		want := crc8ref(d)
		if i == 0 {
			want = crc8ref(byte(addr<<1), reg, d)
		}
		if c != want {
			f.badCRC = true
			return errors.New("nack: crc")
		}
		f.regs[int(reg)+i] = d
	}
	return nil
}

func TestI2CBusReadWrite(t *testing.T) {
	for _, crc := range []bool{false, true} {
		f := newFakeI2C(crc)
		b := NewI2CBus(f, 0, crc)

		if err := b.WriteRegisters(regProtect1, []byte{0x9F, 0x6F, 0x60, 0xAF, 0x97, 0x19}); err != nil {
			t.Fatalf("crc=%v write: %v", crc, err)
		}
		if f.regs[regOVTrip] != 0xAF || f.regs[regCCCfg] != 0x19 {
			t.Fatalf("crc=%v regs %x", crc, f.regs[regProtect1:regCCCfg+1])
		}
		got := make([]byte, 6)
		if err := b.ReadRegisters(regProtect1, got); err != nil {
			t.Fatalf("crc=%v read: %v", crc, err)
		}
		if got[0] != 0x9F || got[5] != 0x19 {
			t.Fatalf("crc=%v read %x", crc, got)
		}
	}
}

func TestI2CBusCRCMismatch(t *testing.T) {
	f := newFakeI2C(true)
	f.regs[regVC1Hi+3] = 0x42
	f.corrupt = 3
	b := NewI2CBus(f, AddressDefault, true)

	err := b.ReadRegisters(regVC1Hi, make([]byte, 10))
	if !errors.Is(err, ErrCRCMismatch) {
		t.Fatalf("got %v", err)
	}
	var be *BusError
	if !errors.As(err, &be) || be.Op != "read" || be.Reg != regVC1Hi+3 {
		t.Fatalf("got %#v", err)
	}

	f.corrupt = 0
	if err := b.ReadRegisters(regSysStat, make([]byte, 1)); !errors.Is(err, ErrCRCMismatch) {
		t.Fatalf("first byte: %v", err)
	}
	if f.badCRC {
		t.Fatal("write CRC rejected")
	}
}

func TestI2CBusNoAck(t *testing.T) {
	f := newFakeI2C(false)
	f.nack = true
	b := NewI2CBus(f, AddressDefault, false)

	err := b.WriteRegisters(regSysCtrl2, []byte{0x43})
	if !errors.Is(err, ErrNoAcknowledge) {
		t.Fatalf("got %v", err)
	}
	var be *BusError
	if !errors.As(err, &be) || be.Cause == nil || be.Op != "write" || be.Reg != regSysCtrl2 {
		t.Fatalf("got %#v", err)
	}

	// Wrong address looks the same as a missing device.
	f.nack = false
	b = NewI2CBus(f, AddressAlt, false)
	if err := b.ReadRegisters(regSysStat, make([]byte, 1)); !errors.Is(err, ErrNoAcknowledge) {
		t.Fatalf("alt addr: %v", err)
	}
}

func TestI2CBusTransferSize(t *testing.T) {
	b := NewI2CBus(newFakeI2C(true), 0, true)
	if err := b.ReadRegisters(regVC1Hi, make([]byte, maxTransfer+1)); !errors.Is(err, ErrTransferSize) {
		t.Fatalf("read: %v", err)
	}
	if err := b.WriteRegisters(regVC1Hi, make([]byte, maxTransfer+1)); !errors.Is(err, ErrTransferSize) {
		t.Fatalf("write: %v", err)
	}
	if err := b.ReadRegisters(regVC1Hi, nil); err != nil {
		t.Fatalf("empty: %v", err)
	}
}
