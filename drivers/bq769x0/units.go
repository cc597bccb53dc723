package bq769x0

import "strconv"

// Integer newtypes for physical quantities. The unit is part of the name;
// there is no floating point anywhere in the conversion path.

type (
	MilliVolts   int32
	MicroVolts   int32
	MilliAmps    int32
	MicroOhms    uint32
	Ohms         uint32
	CentiCelsius int32
)

// Amps expresses a whole-ampere value as MilliAmps.
func Amps(a int32) MilliAmps { return MilliAmps(a * 1000) }

func (v MilliVolts) String() string { return strconv.FormatInt(int64(v), 10) + "mV" }
func (v MicroVolts) String() string { return strconv.FormatInt(int64(v), 10) + "uV" }
func (a MilliAmps) String() string  { return strconv.FormatInt(int64(a), 10) + "mA" }
func (r MicroOhms) String() string  { return strconv.FormatUint(uint64(r), 10) + "uOhm" }
func (r Ohms) String() string       { return strconv.FormatUint(uint64(r), 10) + "Ohm" }

// String renders as degrees with two decimals, e.g. "23.45C".
func (t CentiCelsius) String() string {
	v := int64(t)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	frac := strconv.FormatInt(v%100, 10)
	if len(frac) == 1 {
		frac = "0" + frac
	}
	return sign + strconv.FormatInt(v/100, 10) + "." + frac + "C"
}

// shuntMicroVolts is the voltage across the shunt at current mA:
// mA * µΩ = nV, /1000 → µV.
func shuntMicroVolts(mA MilliAmps, shunt MicroOhms) int64 {
	return int64(mA) * int64(shunt) / 1000
}

// shuntMilliAmps is the inverse of shuntMicroVolts, rounded toward zero so a
// positive threshold never reports more current than the hardware trips at.
func shuntMilliAmps(uV int64, shunt MicroOhms) MilliAmps {
	return MilliAmps(uV * 1000 / int64(shunt))
}
