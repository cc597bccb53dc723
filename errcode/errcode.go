package errcode

import (
	"context"
	"errors"

	"bmscode-go/drivers/bq769x0"
)

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	Busy           Code = "busy"
	Unsupported    Code = "unsupported"
	InvalidParams  Code = "invalid_params"
	InvalidPayload Code = "invalid_payload"
	InvalidTopic   Code = "invalid_topic"
	Timeout        Code = "timeout"

	// AFE configuration
	UnknownVariant        Code = "unknown_variant"
	InvalidCellCount      Code = "invalid_cell_count"
	ThresholdUnattainable Code = "threshold_unattainable"
	IncompatibleRanges    Code = "incompatible_current_ranges"
	Uncalibrated          Code = "uncalibrated"

	// AFE bus
	NoAck          Code = "no_ack"
	CRCMismatch    Code = "crc_mismatch"
	VerifyMismatch Code = "verify_mismatch"

	// AFE state
	NotInitialized      Code = "not_initialized"
	TemperatureSettling Code = "temperature_settling"
	ThermistorCurve     Code = "thermistor_curve_undefined"
	ThermistorOpen      Code = "thermistor_open"
	BalanceRejected     Code = "balance_rejected"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	return Error
}

// driverCodes is checked in order; the first sentinel found wins.
var driverCodes = [...]struct {
	err  error
	code Code
}{
	{bq769x0.ErrUnknownVariant, UnknownVariant},
	{bq769x0.ErrInvalidCellCount, InvalidCellCount},
	{bq769x0.ErrThresholdUnattainable, ThresholdUnattainable},
	{bq769x0.ErrIncompatibleCurrentRanges, IncompatibleRanges},
	{bq769x0.ErrInvalidShunt, InvalidParams},
	{bq769x0.ErrUncalibrated, Uncalibrated},
	{bq769x0.ErrNoAcknowledge, NoAck},
	{bq769x0.ErrCRCMismatch, CRCMismatch},
	{bq769x0.ErrVerifyMismatch, VerifyMismatch},
	{bq769x0.ErrTransferSize, InvalidParams},
	{bq769x0.ErrNotInitialized, NotInitialized},
	{bq769x0.ErrTemperatureSettling, TemperatureSettling},
	{bq769x0.ErrNoThermistor, InvalidParams},
	{bq769x0.ErrThermistorCurveUndefined, ThermistorCurve},
	{bq769x0.ErrThermistorOpen, ThermistorOpen},
	{bq769x0.ErrBalanceAdjacent, BalanceRejected},
	{bq769x0.ErrBalanceOutOfRange, BalanceRejected},
	{context.DeadlineExceeded, Timeout},
}

// MapDriverErr maps low-level driver errors to a Code. Errors that already
// carry a Code keep it.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	for _, dc := range driverCodes {
		if errors.Is(err, dc.err) {
			return dc.code
		}
	}
	return Of(err)
}
