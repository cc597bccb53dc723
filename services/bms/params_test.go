package bms

import (
	"errors"
	"testing"
	"time"

	"bmscode-go/drivers/bq769x0"
	"bmscode-go/errcode"
)

const packJSON = `{
	"name": "pack",
	"bus": "i2c0",
	"variant": "bq7694000",
	"cells": 13,
	"shunt_uohm": 1000,
	"scd_mA": 120000,
	"scd_delay_us": 200,
	"ocd_mA": 40000,
	"ocd_delay_ms": 320,
	"uv_mV": 3000,
	"ov_mV": 4150,
	"ov_delay_s": 2,
	"temp_source": "external",
	"thermistor": [{"ohms": 32650, "cC": 0}, {"ohms": 10000, "cC": 2500}, {"ohms": 3603, "cC": 5000}]
}`

func TestParseParams(t *testing.T) {
	p, err := ParseParams([]byte(packJSON))
	if err != nil {
		t.Fatal(err)
	}
	if p.Addr != bq769x0.AddressDefault || !p.UseCRC() || p.Poll() != time.Second {
		t.Fatalf("defaults: %+v", p)
	}
	if p.AFEVariant() != bq769x0.BQ76940 || p.Source() != bq769x0.SourceExternal || len(p.Curve()) != 3 {
		t.Fatalf("parsed: %+v", p)
	}

	req, err := p.Request()
	if err != nil {
		t.Fatal(err)
	}
	if req.Shunt != 1000 || req.SCDThreshold != 120000 || req.OCDThreshold != 40000 {
		t.Fatalf("req %+v", req)
	}
	if req.SCDDelay != bq769x0.SCD200us || req.OCDDelay != bq769x0.OCD320ms ||
		req.UVDelay != bq769x0.UV4s || req.OVDelay != bq769x0.OV2s {
		t.Fatalf("delays %+v", req)
	}
	if req.UVThreshold != 3000 || req.OVThreshold != 4150 {
		t.Fatalf("voltages %+v", req)
	}
}

func TestParseParamsRejects(t *testing.T) {
	cases := []struct {
		name string
		json string
		want errcode.Code
	}{
		{"unknown field", `{"name":"p","variant":"bq76920","cells":4,"shunt_uohm":1000,"scd_mA":1,"ocd_mA":1,"bogus":1}`, errcode.InvalidParams},
		{"no name", `{"variant":"bq76920","cells":4,"shunt_uohm":1000,"scd_mA":1,"ocd_mA":1}`, errcode.InvalidParams},
		{"bad variant", `{"name":"p","variant":"bq76950","cells":4,"shunt_uohm":1000,"scd_mA":1,"ocd_mA":1}`, errcode.InvalidParams},
		{"cells", `{"name":"p","variant":"bq76920","cells":6,"shunt_uohm":1000,"scd_mA":1,"ocd_mA":1}`, errcode.InvalidCellCount},
		{"no shunt", `{"name":"p","variant":"bq76920","cells":4,"scd_mA":1,"ocd_mA":1}`, errcode.InvalidParams},
		{"external without curve", `{"name":"p","variant":"bq76920","cells":4,"shunt_uohm":1000,"scd_mA":1,"ocd_mA":1,"temp_source":"external"}`, errcode.InvalidParams},
		{"bad curve", `{"name":"p","variant":"bq76920","cells":4,"shunt_uohm":1000,"scd_mA":1,"ocd_mA":1,"thermistor":[{"ohms":1,"cC":0},{"ohms":2,"cC":1}]}`, errcode.InvalidParams},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseParams([]byte(c.json))
			if got := errcode.Of(err); got != c.want {
				t.Fatalf("got %v (%q) want %q", err, got, c.want)
			}
		})
	}
}

func TestRequestRejectsOffGridDelay(t *testing.T) {
	p, err := ParseParams([]byte(packJSON))
	if err != nil {
		t.Fatal(err)
	}
	p.OCDDelay_ms = 300
	_, err = p.Request()
	var e *errcode.E
	if !errors.As(err, &e) || e.C != errcode.InvalidParams || e.Msg != "ocd_delay_ms" {
		t.Fatalf("got %v", err)
	}
}
