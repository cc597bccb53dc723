package bq769x0

import "bmscode-go/x/mathx"

// Temperature ADC characteristics (fixed, not trimmed in OTP).
const (
	tsLSBMicroV     = 382       // µV per LSB on TSx
	dieV25MicroV    = 1_200_000 // die sensor output at 25 °C
	dieSlopeMicroV  = 4200      // µV per °C
	tsRefMicroV     = 3_300_000 // thermistor divider supply
	tsPullupOhms    = 10_000    // internal pull-up
	centiCelsius25C = 2500
)

// TempSource selects what the TSx inputs measure (SYS_CTRL1.TEMP_SEL).
type TempSource uint8

const (
	SourceInternal TempSource = iota // die temperature
	SourceExternal                   // thermistor
)

func (s TempSource) String() string {
	if s == SourceExternal {
		return "external"
	}
	return "internal"
}

// CodeToVoltage converts a 14-bit cell ADC code: V = code·gain + offset.
func CodeToVoltage(code uint16, cal Calibration) MilliVolts {
	uV := int64(code&adcCodeMask)*int64(cal.GainMicroV) + int64(cal.OffsetMilliV)*1000
	return MilliVolts(mathx.FloorDiv(uV, 1000))
}

// VoltageToCode is the inverse of CodeToVoltage, rounding down and clamping
// to the 14-bit range. CodeToVoltage(VoltageToCode(v)) lies in [v-1mV, v]
// for any v inside the ADC range.
func VoltageToCode(mV MilliVolts, cal Calibration) uint16 {
	if cal.GainMicroV == 0 {
		return 0
	}
	num := (int64(mV) - int64(cal.OffsetMilliV)) * 1000
	code := mathx.FloorDiv(num, int64(cal.GainMicroV))
	return uint16(mathx.Clamp(code, 0, adcCodeMask))
}

// CodeToPackVoltage converts BAT_HI/BAT_LO: V = 4·gain·code + cells·offset.
func CodeToPackVoltage(code uint16, cells uint8, cal Calibration) MilliVolts {
	uV := 4*int64(cal.GainMicroV)*int64(code) + int64(cells)*int64(cal.OffsetMilliV)*1000
	return MilliVolts(mathx.FloorDiv(uV, 1000))
}

// CodeToCurrent converts a coulomb counter sample to pack current. Positive
// codes are charge current, negative discharge. nV / µΩ = mA.
func CodeToCurrent(code int16, cal Calibration, shunt MicroOhms) MilliAmps {
	if shunt == 0 {
		return 0
	}
	nV := int64(code) * int64(cal.CCGainNanoV)
	return MilliAmps(nV / int64(shunt))
}

// CurrentToCode is the inverse of CodeToCurrent, truncating toward zero.
func CurrentToCode(mA MilliAmps, cal Calibration, shunt MicroOhms) int16 {
	if cal.CCGainNanoV == 0 {
		return 0
	}
	code := int64(mA) * int64(shunt) / int64(cal.CCGainNanoV)
	return int16(mathx.Clamp(code, -32768, 32767))
}

// CodeToTSVoltage converts a TSx code to the voltage at the pin.
func CodeToTSVoltage(code uint16) MicroVolts {
	return MicroVolts(int32(code&adcCodeMask) * tsLSBMicroV)
}

// CodeToDieTemperature converts a TSx code taken with TEMP_SEL = internal:
// T = 25 °C − (V − 1.200 V) / 4.2 mV/°C.
func CodeToDieTemperature(code uint16) CentiCelsius {
	dv := int64(CodeToTSVoltage(code)) - dieV25MicroV
	return CentiCelsius(centiCelsius25C - mathx.FloorDiv(dv*100, dieSlopeMicroV))
}

// CodeToThermistorResistance converts a TSx code taken with TEMP_SEL =
// external: R = 10 kΩ · V / (3.3 V − V).
func CodeToThermistorResistance(code uint16) (Ohms, error) {
	uV := int64(CodeToTSVoltage(code))
	if uV >= tsRefMicroV {
		return 0, ErrThermistorOpen
	}
	return Ohms(tsPullupOhms * uV / (tsRefMicroV - uV)), nil
}

// CodeToTemperature converts a TSx code for the given source. The external
// path needs a curve for the fitted thermistor; with a nil curve it fails
// with ErrThermistorCurveUndefined.
func CodeToTemperature(code uint16, src TempSource, curve ThermistorCurve) (CentiCelsius, error) {
	if src == SourceInternal {
		return CodeToDieTemperature(code), nil
	}
	if len(curve) == 0 {
		return 0, ErrThermistorCurveUndefined
	}
	r, err := CodeToThermistorResistance(code)
	if err != nil {
		return 0, err
	}
	return curve.Temperature(r), nil
}
