package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgPicoBMS = `{
  "heartbeat": { "interval_s": 5 },
  "bms": {
    "name": "pack",
    "bus": "i2c0",
    "variant": "bq76920",
    "cells": 4,
    "shunt_uohm": 1000,
    "scd_mA": 60000,
    "scd_delay_us": 200,
    "ocd_mA": 20000,
    "ocd_delay_ms": 320,
    "uv_mV": 2900,
    "ov_mV": 4200,
    "poll_ms": 1000
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico-bms": []byte(cfgPicoBMS),
}
