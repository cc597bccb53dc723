// Package bq769x0 drives the TI bq76920/bq76930/bq76940 battery monitor
// AFEs: protection threshold resolution, calibrated cell, pack, current and
// temperature readings, FET control and passive cell balancing.
//
// All arithmetic is integer; the package does not log or allocate on the
// measurement path beyond the slices it returns.
package bq769x0

import "time"

// CCMode selects how the coulomb counter samples.
type CCMode uint8

const (
	CCOff        CCMode = iota
	CCContinuous        // 250 ms conversions, CC_READY each sample
	CCOneShot           // single conversion per request
)

// Temperature readings are invalid until the ADC has settled on a new source.
const tempSettle = 2 * time.Second

// Device is a single-owner handle on one AFE. Methods are not safe for
// concurrent use.
type Device struct {
	bus     Bus
	variant Variant
	info    VariantInfo
	cells   uint8
	inputs  []uint8

	ready    bool
	cal      Calibration
	resolved ResolvedConfig
	shunt    MicroOhms

	src   TempSource
	srcAt time.Time
	curve ThermistorCurve
	now   func() time.Time

	buf [maxTransfer]byte
}

// New validates the variant and cell count. It does not touch the bus.
func New(bus Bus, v Variant, cells uint8) (*Device, error) {
	if err := v.ValidateCells(cells); err != nil {
		return nil, err
	}
	info, _ := v.Info()
	return &Device{
		bus:     bus,
		variant: v,
		info:    info,
		cells:   cells,
		inputs:  info.CellInputs(cells),
		now:     time.Now,
	}, nil
}

// Init reads the OTP calibration, resolves req and programs PROTECT1..CC_CFG,
// then enables the ADC and continuous coulomb counting. Calibration is read
// once per Device.
func (d *Device) Init(req ConfigRequest) (ResolvedConfig, error) {
	if !d.cal.Valid() {
		cal, err := d.readCalibration()
		if err != nil {
			return ResolvedConfig{}, err
		}
		d.cal = cal
	}

	rc, err := Resolve(d.variant, d.cells, req, d.cal)
	if err != nil {
		return ResolvedConfig{}, err
	}

	regs := rc.Registers()
	if err := d.bus.WriteRegisters(regProtect1, regs[:]); err != nil {
		return ResolvedConfig{}, err
	}
	got := d.buf[:len(regs)]
	if err := d.bus.ReadRegisters(regProtect1, got); err != nil {
		return ResolvedConfig{}, err
	}
	for i := range regs {
		if got[i] != regs[i] {
			return ResolvedConfig{}, &BusError{Op: "verify", Reg: regProtect1 + byte(i), Err: ErrVerifyMismatch}
		}
	}

	// ADC on, TEMP_SEL to match d.src.
	sel := byte(0)
	if d.src == SourceExternal {
		sel = ctrl1TempSel
	}
	if _, err := d.update(regSysCtrl1, ctrl1ADCEn|ctrl1TempSel, ctrl1ADCEn|sel, false); err != nil {
		return ResolvedConfig{}, err
	}
	d.srcAt = d.now()
	if _, err := d.update(regSysCtrl2, ctrl2CCEn|ctrl2CCOneShot, ctrl2CCEn, false); err != nil {
		return ResolvedConfig{}, err
	}

	d.resolved = rc
	d.shunt = req.Shunt
	d.ready = true
	return rc, nil
}

func (d *Device) readCalibration() (Calibration, error) {
	b := d.buf[:2]
	if err := d.bus.ReadRegisters(regADCGain1, b); err != nil {
		return Calibration{}, err
	}
	gain1, offset := b[0], b[1]
	if err := d.bus.ReadRegisters(regADCGain2, b[:1]); err != nil {
		return Calibration{}, err
	}
	return DecodeCalibration(gain1, offset, b[0]), nil
}

// ---- accessors ----

func (d *Device) Variant() Variant              { return d.variant }
func (d *Device) Cells() uint8                  { return d.cells }
func (d *Device) Calibration() Calibration      { return d.cal }
func (d *Device) Resolved() ResolvedConfig      { return d.resolved }
func (d *Device) Shunt() MicroOhms              { return d.shunt }
func (d *Device) TemperatureSource() TempSource { return d.src }

// ---- measurements ----

// CellVoltages returns one voltage per connected cell, ascending from the
// pack negative.
func (d *Device) CellVoltages() ([]MilliVolts, error) {
	return d.AppendCellVoltages(make([]MilliVolts, 0, d.cells))
}

// AppendCellVoltages is CellVoltages appending to dst.
func (d *Device) AppendCellVoltages(dst []MilliVolts) ([]MilliVolts, error) {
	if !d.ready {
		return dst, ErrNotInitialized
	}
	b := d.buf[:d.info.cellVoltageBytes()]
	if err := d.bus.ReadRegisters(regVC1Hi, b); err != nil {
		return dst, err
	}
	for _, in := range d.inputs {
		dst = append(dst, CodeToVoltage(be16(b[2*int(in):]), d.cal))
	}
	return dst, nil
}

// PackVoltage reads BAT_HI/BAT_LO.
func (d *Device) PackVoltage() (MilliVolts, error) {
	if !d.ready {
		return 0, ErrNotInitialized
	}
	b := d.buf[:2]
	if err := d.bus.ReadRegisters(regBatHi, b); err != nil {
		return 0, err
	}
	return CodeToPackVoltage(be16(b), d.cells, d.cal), nil
}

// Current reads the last coulomb counter sample. Positive is charge.
func (d *Device) Current() (MilliAmps, error) {
	if !d.ready {
		return 0, ErrNotInitialized
	}
	b := d.buf[:2]
	if err := d.bus.ReadRegisters(regCCHi, b); err != nil {
		return 0, err
	}
	return CodeToCurrent(int16(be16(b)), d.cal, d.shunt), nil
}

// Temperatures returns one reading per thermistor input. Die temperature is
// reported for SourceInternal; SourceExternal needs a curve set with
// SetThermistorCurve. Fails with ErrTemperatureSettling for two seconds after
// a source change.
func (d *Device) Temperatures() ([]CentiCelsius, error) {
	if err := d.tempReady(); err != nil {
		return nil, err
	}
	n := int(d.info.Thermistors)
	b := d.buf[:2*n]
	if err := d.bus.ReadRegisters(regTS1Hi, b); err != nil {
		return nil, err
	}
	out := make([]CentiCelsius, 0, n)
	for i := 0; i < n; i++ {
		t, err := CodeToTemperature(be16(b[2*i:]), d.src, d.curve)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Temperature reads thermistor input ch (0-based, TS1 = 0).
func (d *Device) Temperature(ch uint8) (CentiCelsius, error) {
	if ch >= d.info.Thermistors {
		return 0, ErrNoThermistor
	}
	if err := d.tempReady(); err != nil {
		return 0, err
	}
	b := d.buf[:2]
	if err := d.bus.ReadRegisters(regTS1Hi+2*ch, b); err != nil {
		return 0, err
	}
	return CodeToTemperature(be16(b), d.src, d.curve)
}

func (d *Device) tempReady() error {
	if !d.ready {
		return ErrNotInitialized
	}
	if d.src == SourceExternal && len(d.curve) == 0 {
		return ErrThermistorCurveUndefined
	}
	if d.now().Sub(d.srcAt) < tempSettle {
		return ErrTemperatureSettling
	}
	return nil
}

// SelectTemperatureSource switches TEMP_SEL. Selecting the current source is
// a no-op and does not restart the settling window.
func (d *Device) SelectTemperatureSource(src TempSource) error {
	sel := byte(0)
	if src == SourceExternal {
		sel = ctrl1TempSel
	}
	changed, err := d.update(regSysCtrl1, ctrl1TempSel, sel, false)
	if err != nil {
		return err
	}
	if changed || src != d.src {
		d.srcAt = d.now()
	}
	d.src = src
	return nil
}

// SetThermistorCurve installs the R→T curve used for SourceExternal.
func (d *Device) SetThermistorCurve(c ThermistorCurve) error {
	if err := c.Validate(); err != nil {
		return err
	}
	d.curve = c
	return nil
}

// ---- status ----

// Status reads SYS_STAT.
func (d *Device) Status() (Status, error) {
	b := d.buf[:1]
	if err := d.bus.ReadRegisters(regSysStat, b); err != nil {
		return 0, err
	}
	return Status(b[0]), nil
}

// ClearStatus writes 1s for the flags in mask and checks they dropped.
// CC_READY is re-raised by every conversion, so it is not checked.
func (d *Device) ClearStatus(mask Status) error {
	mask &= StatusAll
	if mask == 0 {
		return nil
	}
	if err := d.bus.WriteRegisters(regSysStat, []byte{byte(mask)}); err != nil {
		return err
	}
	st, err := d.Status()
	if err != nil {
		return err
	}
	if st&mask&^StatusCCReady != 0 {
		return &BusError{Op: "verify", Reg: regSysStat, Err: ErrVerifyMismatch}
	}
	return nil
}

// ---- FET and converter control ----

// SetCharge drives CHG_ON. The AFE refuses while a blocking fault is
// latched; that surfaces as ErrVerifyMismatch.
func (d *Device) SetCharge(on bool) error {
	return d.setFET(ctrl2ChgOn, on)
}

// SetDischarge drives DSG_ON.
func (d *Device) SetDischarge(on bool) error {
	return d.setFET(ctrl2DsgOn, on)
}

func (d *Device) setFET(bit byte, on bool) error {
	if !d.ready {
		return ErrNotInitialized
	}
	v := byte(0)
	if on {
		v = bit
	}
	_, err := d.update(regSysCtrl2, bit, v, true)
	return err
}

func (d *Device) Charging() (bool, error)    { return d.ctrl2Bit(ctrl2ChgOn) }
func (d *Device) Discharging() (bool, error) { return d.ctrl2Bit(ctrl2DsgOn) }

func (d *Device) ctrl2Bit(bit byte) (bool, error) {
	b := d.buf[:1]
	if err := d.bus.ReadRegisters(regSysCtrl2, b); err != nil {
		return false, err
	}
	return b[0]&bit != 0, nil
}

// EnableADC switches the voltage/temperature ADC. OV protection only works
// with the ADC on.
func (d *Device) EnableADC(on bool) error {
	v := byte(0)
	if on {
		v = ctrl1ADCEn
	}
	_, err := d.update(regSysCtrl1, ctrl1ADCEn, v, true)
	return err
}

// SetCoulombCounterMode programs CC_EN/CC_ONESHOT. CCOneShot starts one
// conversion each time it is set.
func (d *Device) SetCoulombCounterMode(m CCMode) error {
	var v byte
	switch m {
	case CCContinuous:
		v = ctrl2CCEn
	case CCOneShot:
		v = ctrl2CCOneShot
	}
	_, err := d.update(regSysCtrl2, ctrl2CCEn|ctrl2CCOneShot, v, false)
	return err
}

// ---- balancing ----

// SetBalancing enables the bleed switches for the cells in m.
func (d *Device) SetBalancing(m BalanceMask) error {
	if err := ValidateBalanceMask(d.cells, m); err != nil {
		return err
	}
	regs := balanceRegisters(d.inputs, m)
	n := int(d.info.Groups)
	if err := d.bus.WriteRegisters(regCellBal1, regs[:n]); err != nil {
		return err
	}
	got := d.buf[:n]
	if err := d.bus.ReadRegisters(regCellBal1, got); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if got[i] != regs[i] {
			return &BusError{Op: "verify", Reg: regCellBal1 + byte(i), Err: ErrVerifyMismatch}
		}
	}
	return nil
}

// Balancing reads back the active balance mask.
func (d *Device) Balancing() (BalanceMask, error) {
	b := d.buf[:d.info.Groups]
	if err := d.bus.ReadRegisters(regCellBal1, b); err != nil {
		return 0, err
	}
	return balanceMaskFromRegisters(d.inputs, b), nil
}

// ---- power ----

// EnterShipMode writes the SHUT_A/SHUT_B sequence (00, 01, 10) that puts the
// AFE into its lowest power state. The device stops responding; a new Init
// is required after it is woken by the boot signal.
func (d *Device) EnterShipMode() error {
	b := d.buf[:1]
	if err := d.bus.ReadRegisters(regSysCtrl1, b); err != nil {
		return err
	}
	base := b[0] &^ (ctrl1ShutA | ctrl1ShutB)
	for _, shut := range [...]byte{0, ctrl1ShutB, ctrl1ShutA} {
		if err := d.bus.WriteRegisters(regSysCtrl1, []byte{base | shut}); err != nil {
			return err
		}
	}
	d.ready = false
	return nil
}

// ---- helpers ----

// update read-modify-writes the bits in mask to val. Nothing is written when
// they already match. With verify set the register is read back.
func (d *Device) update(reg, mask, val byte, verify bool) (bool, error) {
	b := d.buf[:1]
	if err := d.bus.ReadRegisters(reg, b); err != nil {
		return false, err
	}
	want := b[0]&^mask | val&mask
	if want == b[0] {
		return false, nil
	}
	b[0] = want
	if err := d.bus.WriteRegisters(reg, b); err != nil {
		return false, err
	}
	if !verify {
		return true, nil
	}
	if err := d.bus.ReadRegisters(reg, b); err != nil {
		return true, err
	}
	if b[0]&mask != val&mask {
		return true, &BusError{Op: "verify", Reg: reg, Err: ErrVerifyMismatch}
	}
	return true, nil
}

func be16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
