package bq769x0

const (
	adcGainBase = 365 // µV/LSB, ADCGAIN<4:0> adds 0..31

	// CCGainDefault is the coulomb counter LSB, 8.44 µV, in nV. It is fixed in
	// silicon; there is no OTP trim for it.
	CCGainDefault = 8440
)

// Calibration holds the per-device ADC characteristics read from OTP at Init.
type Calibration struct {
	GainMicroV   uint16 // µV per LSB, 365..396
	OffsetMilliV int8   // mV
	CCGainNanoV  uint32 // nV per coulomb counter LSB
}

// DecodeCalibration assembles the calibration from ADCGAIN1 (0x50),
// ADCOFFSET (0x51) and ADCGAIN2 (0x59).
func DecodeCalibration(gain1, offset, gain2 byte) Calibration {
	g := uint16((gain1&0x0C)<<1) | uint16(gain2>>5)
	return Calibration{
		GainMicroV:   adcGainBase + g,
		OffsetMilliV: int8(offset),
		CCGainNanoV:  CCGainDefault,
	}
}

// Valid reports whether c can drive conversions.
func (c Calibration) Valid() bool { return c.GainMicroV != 0 && c.CCGainNanoV != 0 }
