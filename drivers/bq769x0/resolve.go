package bq769x0

import "bmscode-go/x/mathx"

// Default cell protection thresholds for Li-ion chemistries.
const (
	DefaultCellUndervoltage MilliVolts = 2800
	DefaultCellOvervoltage  MilliVolts = 4200
)

// Full 14-bit ADC codes addressed by OV_TRIP/UV_TRIP:
//
//	OV: 10-tttt-tttt-1000
//	UV: 01-tttt-tttt-0000
const (
	ovTripPrefix = 0x2000
	ovTripLow    = 0x0008
	uvTripPrefix = 0x1000
	uvTripLow    = 0x0000
)

// ConfigRequest is what the caller wants the protection comparators to do.
type ConfigRequest struct {
	Shunt MicroOhms

	SCDDelay     SCDDelay
	SCDThreshold MilliAmps
	OCDDelay     OCDDelay
	OCDThreshold MilliAmps

	UVDelay     UVDelay
	UVThreshold MilliVolts
	OVDelay     OVDelay
	OVThreshold MilliVolts
}

// DefaultConfigRequest fills the voltage thresholds with the Li-ion defaults
// and the longest delays; currents and shunt are left for the caller.
func DefaultConfigRequest() ConfigRequest {
	return ConfigRequest{
		SCDDelay:    SCD400us,
		OCDDelay:    OCD1280ms,
		UVDelay:     UV4s,
		UVThreshold: DefaultCellUndervoltage,
		OVDelay:     OV4s,
		OVThreshold: DefaultCellOvervoltage,
	}
}

// ResolvedConfig is the register image for PROTECT1..CC_CFG together with the
// thresholds the hardware will actually enforce.
type ResolvedConfig struct {
	Protect1 byte
	Protect2 byte
	Protect3 byte
	OVTrip   byte
	UVTrip   byte
	CCCfg    byte

	Range CurrentRange
	SCD   MilliAmps
	OCD   MilliAmps
	UV    MilliVolts
	OV    MilliVolts
}

// Registers returns the block written at PROTECT1 (0x06).
func (r ResolvedConfig) Registers() [6]byte {
	return [6]byte{r.Protect1, r.Protect2, r.Protect3, r.OVTrip, r.UVTrip, r.CCCfg}
}

// Resolve maps req onto the discrete settings of variant v. Failures are
// *ConfigError values except for an invalid variant/cell count or missing
// calibration.
func Resolve(v Variant, cells uint8, req ConfigRequest, cal Calibration) (ResolvedConfig, error) {
	if err := v.ValidateCells(cells); err != nil {
		return ResolvedConfig{}, err
	}
	if !cal.Valid() {
		return ResolvedConfig{}, ErrUncalibrated
	}
	if req.Shunt == 0 {
		return ResolvedConfig{}, configErr(FieldShunt, ErrInvalidShunt)
	}

	rng, scd, ocd, err := resolveCurrents(req)
	if err != nil {
		return ResolvedConfig{}, err
	}
	ovTrip, ovAchieved, err := resolveTrip(FieldOV, req.OVThreshold, cal, ovTripPrefix, ovTripLow)
	if err != nil {
		return ResolvedConfig{}, err
	}
	uvTrip, uvAchieved, err := resolveTrip(FieldUV, req.UVThreshold, cal, uvTripPrefix, uvTripLow)
	if err != nil {
		return ResolvedConfig{}, err
	}

	return ResolvedConfig{
		Protect1: rng.bits() | req.SCDDelay.bits() | scd.code,
		Protect2: req.OCDDelay.bits() | ocd.code,
		Protect3: req.UVDelay.bits() | req.OVDelay.bits(),
		OVTrip:   ovTrip,
		UVTrip:   uvTrip,
		CCCfg:    ccCfgValue,

		Range: rng,
		SCD:   shuntMilliAmps(scd.uV, req.Shunt),
		OCD:   shuntMilliAmps(ocd.uV, req.Shunt),
		UV:    uvAchieved,
		OV:    ovAchieved,
	}, nil
}

// resolveCurrents finds one RSNS range able to hold both comparators and,
// within it, the nearest setting at or below each request. With both ranges
// usable the one losing the least current wins; lower on ties.
func resolveCurrents(req ConfigRequest) (CurrentRange, thresholdPick, thresholdPick, error) {
	scdUV := shuntMicroVolts(req.SCDThreshold, req.Shunt)
	ocdUV := shuntMicroVolts(req.OCDThreshold, req.Shunt)

	var (
		found          bool
		best           CurrentRange
		bestSCD        thresholdPick
		bestOCD        thresholdPick
		scdAny, ocdAny bool
	)
	for i, r := range currentRanges {
		top := i == len(currentRanges)-1
		s, okS := pickAtOrBelow(scdTable[r], scdUV, top)
		o, okO := pickAtOrBelow(ocdTable[r], ocdUV, top)
		scdAny = scdAny || okS
		ocdAny = ocdAny || okO
		if !okS || !okO {
			continue
		}
		if !found || s.shortfall+o.shortfall < bestSCD.shortfall+bestOCD.shortfall {
			found, best, bestSCD, bestOCD = true, r, s, o
		}
	}
	switch {
	case found:
		return best, bestSCD, bestOCD, nil
	case !scdAny:
		return 0, thresholdPick{}, thresholdPick{}, configErr(FieldSCD, ErrThresholdUnattainable)
	case !ocdAny:
		return 0, thresholdPick{}, thresholdPick{}, configErr(FieldOCD, ErrThresholdUnattainable)
	default:
		return 0, thresholdPick{}, thresholdPick{}, configErr("", ErrIncompatibleCurrentRanges)
	}
}

// resolveTrip encodes a cell-voltage threshold into an 8-bit trip register
// and reports the voltage that code really represents.
func resolveTrip(f Field, mV MilliVolts, cal Calibration, prefix, low uint16) (byte, MilliVolts, error) {
	lo := CodeToVoltage(prefix|low, cal)
	hi := CodeToVoltage(prefix|0x0FF0|low, cal)
	if mV < lo || mV > hi {
		return 0, 0, configErr(f, ErrThresholdUnattainable)
	}
	code := int32(VoltageToCode(mV, cal))
	trip := byte(mathx.Clamp((code-int32(prefix))>>4, 0, 255))
	return trip, CodeToVoltage(prefix|uint16(trip)<<4|low, cal), nil
}
