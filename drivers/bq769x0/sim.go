package bq769x0

import "sync"

// OTP trim loaded into a fresh SimBus: gain 378 µV/LSB, offset +43 mV.
const (
	simADCGain1  = 0x15
	simADCOffset = 0x2B
	simADCGain2  = 0xA3
)

// SimBus is an in-memory bq769x0 register file implementing Bus. It models
// the behaviour the driver depends on: SYS_STAT write-1-to-clear, FET bits
// that refuse to turn on while a blocking fault is latched, one-shot coulomb
// counting and the SHUT_A/SHUT_B ship-mode sequence. Used by tests and by
// hosts running without hardware.
type SimBus struct {
	mu    sync.Mutex
	regs  [256]byte
	ship  int // progress through the ship-mode write sequence
	down  bool
	rdErr error
	wrErr error

	reads  int
	writes int
}

// NewSimBus returns a simulator in its power-on state.
func NewSimBus() *SimBus {
	s := &SimBus{}
	s.regs[regADCGain1] = simADCGain1
	s.regs[regADCOffset] = simADCOffset
	s.regs[regADCGain2] = simADCGain2
	return s
}

// Calibration is the trim a driver will decode from this simulator.
func (s *SimBus) Calibration() Calibration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DecodeCalibration(s.regs[regADCGain1], s.regs[regADCOffset], s.regs[regADCGain2])
}

func (s *SimBus) ReadRegisters(reg byte, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rdErr != nil {
		return &BusError{Op: "read", Reg: reg, Err: s.rdErr}
	}
	if int(reg)+len(buf) > len(s.regs) {
		return &BusError{Op: "read", Reg: reg, Err: ErrTransferSize}
	}
	s.reads++
	copy(buf, s.regs[reg:])
	return nil
}

func (s *SimBus) WriteRegisters(reg byte, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wrErr != nil {
		return &BusError{Op: "write", Reg: reg, Err: s.wrErr}
	}
	if int(reg)+len(data) > len(s.regs) {
		return &BusError{Op: "write", Reg: reg, Err: ErrTransferSize}
	}
	s.writes++
	for i, v := range data {
		s.write(reg+byte(i), v)
	}
	return nil
}

func (s *SimBus) write(reg, v byte) {
	switch reg {
	case regSysStat:
		s.regs[reg] &^= v
	case regSysCtrl1:
		s.regs[reg] = v
		s.trackShip(v & (ctrl1ShutA | ctrl1ShutB))
	case regSysCtrl2:
		st := Status(s.regs[regSysStat])
		if st.Has(chgBlock) {
			v &^= ctrl2ChgOn
		}
		if st.Has(dsgBlock) {
			v &^= ctrl2DsgOn
		}
		if v&ctrl2CCOneShot != 0 {
			v &^= ctrl2CCOneShot
			s.regs[regSysStat] |= byte(StatusCCReady)
		}
		s.regs[reg] = v
	case regADCGain1, regADCOffset, regADCGain2:
		// OTP, read-only
	default:
		s.regs[reg] = v
	}
}

// Faults that force the FETs off, as the silicon does.
const (
	chgBlock = StatusOV | StatusOvrdAlert | StatusDeviceXRdy
	dsgBlock = StatusUV | StatusOCD | StatusSCD | StatusOvrdAlert | StatusDeviceXRdy
)

// Ship mode is entered by writing SHUT=00, then 01, then 10.
func (s *SimBus) trackShip(shut byte) {
	switch {
	case shut == 0:
		s.ship = 1
	case s.ship == 1 && shut == ctrl1ShutB:
		s.ship = 2
	case s.ship == 2 && shut == ctrl1ShutA:
		s.ship = 0
		s.down = true
	default:
		s.ship = 0
	}
}

// Shutdown reports whether the ship-mode sequence has completed.
func (s *SimBus) Shutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.down
}

// Register returns the raw value of reg.
func (s *SimBus) Register(reg byte) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[reg]
}

// SetRegister pokes reg directly, bypassing write semantics.
func (s *SimBus) SetRegister(reg, v byte) {
	s.mu.Lock()
	s.regs[reg] = v
	s.mu.Unlock()
}

// Raise latches status flags and drops the FETs they block.
func (s *SimBus) Raise(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[regSysStat] |= byte(st)
	if st.Has(chgBlock) {
		s.regs[regSysCtrl2] &^= ctrl2ChgOn
	}
	if st.Has(dsgBlock) {
		s.regs[regSysCtrl2] &^= ctrl2DsgOn
	}
}

// SetCellCode sets the raw 14-bit code of VC input n (0-based).
func (s *SimBus) SetCellCode(input uint8, code uint16) {
	s.put16(regVC1Hi+2*input, code&adcCodeMask)
}

// SetCellVoltage stores the code that converts back to mV (within one LSB).
func (s *SimBus) SetCellVoltage(input uint8, mV MilliVolts) {
	s.SetCellCode(input, VoltageToCode(mV, s.Calibration()))
}

// SetPackCode sets BAT_HI/BAT_LO.
func (s *SimBus) SetPackCode(code uint16) { s.put16(regBatHi, code) }

// SetCurrentCode sets CC_HI/CC_LO.
func (s *SimBus) SetCurrentCode(code int16) { s.put16(regCCHi, uint16(code)) }

// SetCurrent stores the coulomb counter code for mA through shunt.
func (s *SimBus) SetCurrent(mA MilliAmps, shunt MicroOhms) {
	s.SetCurrentCode(CurrentToCode(mA, s.Calibration(), shunt))
}

// SetTSCode sets the raw code of thermistor input n (0-based).
func (s *SimBus) SetTSCode(n uint8, code uint16) {
	s.put16(regTS1Hi+2*n, code&adcCodeMask)
}

// FailReads makes every read fail with err; nil restores normal operation.
func (s *SimBus) FailReads(err error) {
	s.mu.Lock()
	s.rdErr = err
	s.mu.Unlock()
}

// FailWrites makes every write fail with err; nil restores normal operation.
func (s *SimBus) FailWrites(err error) {
	s.mu.Lock()
	s.wrErr = err
	s.mu.Unlock()
}

// Transfers returns the number of successful reads and writes so far.
func (s *SimBus) Transfers() (reads, writes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.writes
}

func (s *SimBus) put16(reg byte, v uint16) {
	s.mu.Lock()
	s.regs[reg] = byte(v >> 8)
	s.regs[reg+1] = byte(v)
	s.mu.Unlock()
}
