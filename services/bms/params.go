package bms

import (
	"bytes"
	"encoding/json"
	"time"

	"bmscode-go/drivers/bq769x0"
	"bmscode-go/errcode"
)

// Params defines wiring and protection settings for one AFE instance.
// Zero values take the defaults applied by Defaults.
type Params struct {
	Name    string `json:"name"`           // capability name (required)
	Bus     string `json:"bus"`            // e.g. "i2c0", "/dev/i2c-1"
	Addr    uint16 `json:"addr,omitempty"` // default 0x08
	CRC     *bool  `json:"crc,omitempty"`  // default true
	Variant string `json:"variant"`        // "bq76920" | "bq76930" | "bq76940"
	Cells   uint8  `json:"cells"`

	Shunt_uOhm uint32 `json:"shunt_uohm"` // required

	SCD_mA      int32  `json:"scd_mA"` // required
	SCDDelay_us uint32 `json:"scd_delay_us,omitempty"`
	OCD_mA      int32  `json:"ocd_mA"` // required
	OCDDelay_ms uint32 `json:"ocd_delay_ms,omitempty"`
	UV_mV       int32  `json:"uv_mV,omitempty"`
	UVDelay_s   uint32 `json:"uv_delay_s,omitempty"`
	OV_mV       int32  `json:"ov_mV,omitempty"`
	OVDelay_s   uint32 `json:"ov_delay_s,omitempty"`

	TempSource string       `json:"temp_source,omitempty"` // "internal" (default) | "external"
	Thermistor []CurvePoint `json:"thermistor,omitempty"`  // needed for "external"

	PollMs uint32 `json:"poll_ms,omitempty"` // default 1000
}

// CurvePoint is one thermistor table entry.
type CurvePoint struct {
	Ohms   uint32 `json:"ohms"`
	CentiC int32  `json:"cC"`
}

const defaultPoll = time.Second

// ParseParams decodes a JSON document, applies defaults and validates it.
func ParseParams(b []byte) (Params, error) {
	var p Params
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Params{}, &errcode.E{C: errcode.InvalidParams, Msg: err.Error(), Err: err}
	}
	p.Defaults()
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Defaults fills unset optional fields.
func (p *Params) Defaults() {
	def := bq769x0.DefaultConfigRequest()
	if p.Addr == 0 {
		p.Addr = bq769x0.AddressDefault
	}
	if p.CRC == nil {
		on := true
		p.CRC = &on
	}
	if p.SCDDelay_us == 0 {
		p.SCDDelay_us = uint32(def.SCDDelay.Duration() / time.Microsecond)
	}
	if p.OCDDelay_ms == 0 {
		p.OCDDelay_ms = uint32(def.OCDDelay.Duration() / time.Millisecond)
	}
	if p.UV_mV == 0 {
		p.UV_mV = int32(def.UVThreshold)
	}
	if p.UVDelay_s == 0 {
		p.UVDelay_s = uint32(def.UVDelay.Duration() / time.Second)
	}
	if p.OV_mV == 0 {
		p.OV_mV = int32(def.OVThreshold)
	}
	if p.OVDelay_s == 0 {
		p.OVDelay_s = uint32(def.OVDelay.Duration() / time.Second)
	}
	if p.TempSource == "" {
		p.TempSource = bq769x0.SourceInternal.String()
	}
	if p.PollMs == 0 {
		p.PollMs = uint32(defaultPoll / time.Millisecond)
	}
}

func invalid(field string) error {
	return &errcode.E{C: errcode.InvalidParams, Msg: field}
}

// Validate checks the fields that no default can supply. Threshold
// reachability is left to the resolver at Init.
func (p Params) Validate() error {
	if p.Name == "" {
		return invalid("name")
	}
	v, ok := bq769x0.ParseVariant(p.Variant)
	if !ok {
		return invalid("variant")
	}
	if err := v.ValidateCells(p.Cells); err != nil {
		return &errcode.E{C: errcode.InvalidCellCount, Msg: "cells", Err: err}
	}
	if p.Shunt_uOhm == 0 {
		return invalid("shunt_uohm")
	}
	if p.SCD_mA <= 0 {
		return invalid("scd_mA")
	}
	if p.OCD_mA <= 0 {
		return invalid("ocd_mA")
	}
	switch p.TempSource {
	case "internal":
	case "external":
		if len(p.Thermistor) == 0 {
			return invalid("thermistor")
		}
	default:
		return invalid("temp_source")
	}
	if len(p.Thermistor) > 0 {
		if err := p.Curve().Validate(); err != nil {
			return &errcode.E{C: errcode.InvalidParams, Msg: "thermistor", Err: err}
		}
	}
	return nil
}

// AFEVariant returns the parsed variant; call after Validate.
func (p Params) AFEVariant() bq769x0.Variant {
	v, _ := bq769x0.ParseVariant(p.Variant)
	return v
}

// Source returns the configured temperature source.
func (p Params) Source() bq769x0.TempSource {
	if p.TempSource == "external" {
		return bq769x0.SourceExternal
	}
	return bq769x0.SourceInternal
}

// Curve converts the thermistor table; nil when none is configured.
func (p Params) Curve() bq769x0.ThermistorCurve {
	if len(p.Thermistor) == 0 {
		return nil
	}
	c := make(bq769x0.ThermistorCurve, len(p.Thermistor))
	for i, pt := range p.Thermistor {
		c[i] = bq769x0.ThermistorPoint{R: bq769x0.Ohms(pt.Ohms), T: bq769x0.CentiCelsius(pt.CentiC)}
	}
	return c
}

// Poll is the sampling period.
func (p Params) Poll() time.Duration { return time.Duration(p.PollMs) * time.Millisecond }

// Request converts the protection settings to a resolver request. Delays
// must match a hardware setting exactly.
func (p Params) Request() (bq769x0.ConfigRequest, error) {
	req := bq769x0.ConfigRequest{
		Shunt:        bq769x0.MicroOhms(p.Shunt_uOhm),
		SCDThreshold: bq769x0.MilliAmps(p.SCD_mA),
		OCDThreshold: bq769x0.MilliAmps(p.OCD_mA),
		UVThreshold:  bq769x0.MilliVolts(p.UV_mV),
		OVThreshold:  bq769x0.MilliVolts(p.OV_mV),
	}
	var ok bool
	if req.SCDDelay, ok = bq769x0.ParseSCDDelay(time.Duration(p.SCDDelay_us) * time.Microsecond); !ok {
		return req, invalid("scd_delay_us")
	}
	if req.OCDDelay, ok = bq769x0.ParseOCDDelay(time.Duration(p.OCDDelay_ms) * time.Millisecond); !ok {
		return req, invalid("ocd_delay_ms")
	}
	if req.UVDelay, ok = bq769x0.ParseUVDelay(time.Duration(p.UVDelay_s) * time.Second); !ok {
		return req, invalid("uv_delay_s")
	}
	if req.OVDelay, ok = bq769x0.ParseOVDelay(time.Duration(p.OVDelay_s) * time.Second); !ok {
		return req, invalid("ov_delay_s")
	}
	return req, nil
}

// UseCRC reports whether the bus should frame transfers with CRC-8.
func (p Params) UseCRC() bool { return p.CRC == nil || *p.CRC }
