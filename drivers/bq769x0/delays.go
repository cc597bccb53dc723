package bq769x0

import "time"

// Protection delays. Each type only has the hardware-supported values; the
// numeric value of a constant is its register field code.

type SCDDelay uint8

const (
	SCD70us SCDDelay = iota
	SCD100us
	SCD200us
	SCD400us
)

type OCDDelay uint8

const (
	OCD8ms OCDDelay = iota
	OCD20ms
	OCD40ms
	OCD80ms
	OCD160ms
	OCD320ms
	OCD640ms
	OCD1280ms
)

type UVDelay uint8

const (
	UV1s UVDelay = iota
	UV4s
	UV8s
	UV16s
)

type OVDelay uint8

const (
	OV1s OVDelay = iota
	OV2s
	OV4s
	OV8s
)

var (
	scdDelays = [...]time.Duration{70 * time.Microsecond, 100 * time.Microsecond, 200 * time.Microsecond, 400 * time.Microsecond}
	ocdDelays = [...]time.Duration{
		8 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 80 * time.Millisecond,
		160 * time.Millisecond, 320 * time.Millisecond, 640 * time.Millisecond, 1280 * time.Millisecond,
	}
	uvDelays = [...]time.Duration{1 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	ovDelays = [...]time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
)

// Field placement within PROTECT1/2/3.
func (d SCDDelay) bits() byte { return byte(d&0x3) << 3 }
func (d OCDDelay) bits() byte { return byte(d&0x7) << 4 }
func (d UVDelay) bits() byte  { return byte(d&0x3) << 6 }
func (d OVDelay) bits() byte  { return byte(d&0x3) << 4 }

func (d SCDDelay) Duration() time.Duration { return scdDelays[d&0x3] }
func (d OCDDelay) Duration() time.Duration { return ocdDelays[d&0x7] }
func (d UVDelay) Duration() time.Duration  { return uvDelays[d&0x3] }
func (d OVDelay) Duration() time.Duration  { return ovDelays[d&0x3] }

// Parsers for configuration boundaries; ok is false for unsupported values.

func ParseSCDDelay(d time.Duration) (SCDDelay, bool) {
	i, ok := indexOf(scdDelays[:], d)
	return SCDDelay(i), ok
}

func ParseOCDDelay(d time.Duration) (OCDDelay, bool) {
	i, ok := indexOf(ocdDelays[:], d)
	return OCDDelay(i), ok
}

func ParseUVDelay(d time.Duration) (UVDelay, bool) {
	i, ok := indexOf(uvDelays[:], d)
	return UVDelay(i), ok
}

func ParseOVDelay(d time.Duration) (OVDelay, bool) {
	i, ok := indexOf(ovDelays[:], d)
	return OVDelay(i), ok
}

func indexOf(tab []time.Duration, d time.Duration) (int, bool) {
	for i, v := range tab {
		if v == d {
			return i, true
		}
	}
	return 0, false
}
