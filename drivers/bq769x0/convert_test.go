package bq769x0

import (
	"errors"
	"testing"
)

func TestDecodeCalibration(t *testing.T) {
	cases := []struct {
		g1, off, g2 byte
		gain        uint16
		offset      int8
	}{
		{0x15, 0x2B, 0xA3, 378, 43},
		{0x00, 0x00, 0x00, 365, 0},
		{0x0C, 0xFF, 0xE0, 396, -1},
		{0xF3, 0x80, 0x1F, 365, -128}, // reserved bits ignored
	}
	for _, c := range cases {
		cal := DecodeCalibration(c.g1, c.off, c.g2)
		if cal.GainMicroV != c.gain || cal.OffsetMilliV != c.offset || cal.CCGainNanoV != CCGainDefault {
			t.Errorf("%02x/%02x/%02x: got %+v", c.g1, c.off, c.g2, cal)
		}
	}
}

func TestVoltageRoundTrip(t *testing.T) {
	cals := []Calibration{
		testCal,
		{GainMicroV: 365, OffsetMilliV: -20, CCGainNanoV: CCGainDefault},
		{GainMicroV: 396, OffsetMilliV: 127, CCGainNanoV: CCGainDefault},
	}
	for _, cal := range cals {
		for v := MilliVolts(1000); v <= 5000; v += 7 {
			got := CodeToVoltage(VoltageToCode(v, cal), cal)
			if got > v || got < v-1 {
				t.Fatalf("cal %+v: %v -> %v", cal, v, got)
			}
		}
	}
}

func TestVoltageToCodeClamps(t *testing.T) {
	if c := VoltageToCode(-500, testCal); c != 0 {
		t.Fatalf("negative: %d", c)
	}
	if c := VoltageToCode(9000, testCal); c != adcCodeMask {
		t.Fatalf("overrange: %d", c)
	}
}

func TestPackVoltage(t *testing.T) {
	// 4·378·2000 µV + 4·43 mV
	if got := CodeToPackVoltage(2000, 4, testCal); got != 3196 {
		t.Fatalf("got %v", got)
	}
}

func TestCurrentSign(t *testing.T) {
	if got := CodeToCurrent(1000, testCal, 1000); got != 8440 {
		t.Fatalf("charge: %v", got)
	}
	if got := CodeToCurrent(-1000, testCal, 1000); got != -8440 {
		t.Fatalf("discharge: %v", got)
	}
	if got := CodeToCurrent(1000, testCal, 0); got != 0 {
		t.Fatalf("zero shunt: %v", got)
	}
	for _, mA := range []MilliAmps{-40000, -1234, 0, 999, 25000} {
		code := CurrentToCode(mA, testCal, 2000)
		got := CodeToCurrent(code, testCal, 2000)
		// one LSB is 8440/2000 = 4.22 mA
		if d := got - mA; d > 5 || d < -5 {
			t.Errorf("%v -> %d -> %v", mA, code, got)
		}
	}
}

func TestDieTemperature(t *testing.T) {
	// 1.200 V is 25 °C.
	room := CodeToDieTemperature(3141)
	if room < 2490 || room > 2510 {
		t.Fatalf("room %v", room)
	}
	if hot, cold := CodeToDieTemperature(3000), CodeToDieTemperature(3300); hot <= room || cold >= room {
		t.Fatalf("slope: hot %v room %v cold %v", hot, room, cold)
	}
	if s := CentiCelsius(2504).String(); s != "25.04C" {
		t.Fatalf("String %q", s)
	}
}

var testCurve = ThermistorCurve{
	{R: 32650, T: 0},
	{R: 10000, T: 2500},
	{R: 3603, T: 5000},
	{R: 1481, T: 7500},
}

func TestThermistor(t *testing.T) {
	// 1.65 V is half the 3.3 V divider supply: R ≈ 10 kΩ.
	r, err := CodeToThermistorResistance(4319)
	if err != nil || r < 9990 || r > 10010 {
		t.Fatalf("r %v err %v", r, err)
	}
	if _, err := CodeToThermistorResistance(adcCodeMask); !errors.Is(err, ErrThermistorOpen) {
		t.Fatalf("open: %v", err)
	}

	if _, err := CodeToTemperature(4319, SourceExternal, nil); !errors.Is(err, ErrThermistorCurveUndefined) {
		t.Fatalf("no curve: %v", err)
	}
	got, err := CodeToTemperature(4319, SourceExternal, testCurve)
	if err != nil || got != 2500 {
		t.Fatalf("got %v err %v", got, err)
	}
	if got, _ := CodeToTemperature(3141, SourceInternal, nil); got != CodeToDieTemperature(3141) {
		t.Fatalf("internal %v", got)
	}
}

func TestThermistorCurve(t *testing.T) {
	if err := testCurve.Validate(); err != nil {
		t.Fatal(err)
	}
	bad := ThermistorCurve{{R: 1000, T: 0}, {R: 2000, T: 100}}
	if err := bad.Validate(); err == nil {
		t.Fatal("increasing R accepted")
	}
	cases := []struct {
		r    Ohms
		want CentiCelsius
	}{
		{50000, 0}, // clamp cold end
		{32650, 0},
		{21325, 1250}, // midpoint of first segment
		{10000, 2500},
		{1000, 7500}, // clamp hot end
	}
	for _, c := range cases {
		if got := testCurve.Temperature(c.r); got != c.want {
			t.Errorf("R=%v: got %v want %v", c.r, got, c.want)
		}
	}
}
