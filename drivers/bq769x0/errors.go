package bq769x0

import (
	"errors"
	"strconv"
)

var (
	// Construction (fail before any bus traffic).
	ErrUnknownVariant   = errors.New("bq769x0: unknown variant")
	ErrInvalidCellCount = errors.New("bq769x0: cell count outside variant range")

	// Configuration resolution.
	ErrThresholdUnattainable     = errors.New("bq769x0: threshold unattainable")
	ErrIncompatibleCurrentRanges = errors.New("bq769x0: SCD and OCD need different RSNS ranges")
	ErrInvalidShunt              = errors.New("bq769x0: shunt resistance must be non-zero")
	ErrUncalibrated              = errors.New("bq769x0: calibration not loaded")

	// Bus collaborator.
	ErrNoAcknowledge  = errors.New("bq769x0: no acknowledge")
	ErrCRCMismatch    = errors.New("bq769x0: crc mismatch")
	ErrVerifyMismatch = errors.New("bq769x0: verify mismatch")
	ErrTransferSize   = errors.New("bq769x0: transfer too large")

	// Facade.
	ErrNotInitialized           = errors.New("bq769x0: not initialised")
	ErrTemperatureSettling      = errors.New("bq769x0: temperature source switched, reading not yet valid")
	ErrNoThermistor             = errors.New("bq769x0: thermistor channel not present on variant")
	ErrThermistorCurveUndefined = errors.New("bq769x0: no thermistor curve configured")
	ErrThermistorOpen           = errors.New("bq769x0: thermistor input at or above reference")
	ErrBalanceAdjacent          = errors.New("bq769x0: adjacent cells selected for balancing")
	ErrBalanceOutOfRange        = errors.New("bq769x0: balance bit beyond cell count")
)

// Field names a ConfigRequest threshold in a ConfigError.
type Field string

const (
	FieldShunt Field = "shunt"
	FieldSCD   Field = "scd"
	FieldOCD   Field = "ocd"
	FieldUV    Field = "uv"
	FieldOV    Field = "ov"
)

// ConfigError is a local validation failure from Resolve. It never wraps a
// bus error, so callers can tell the two apart with errors.As.
type ConfigError struct {
	Field Field
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + " (" + string(e.Field) + ")"
}

func (e *ConfigError) Unwrap() error { return e.Err }

// BusError carries the register a failed transfer addressed. Err is one of
// the bus sentinels; Cause is the transport error, if any.
type BusError struct {
	Op    string // "read" | "write" | "verify"
	Reg   byte
	Err   error
	Cause error
}

func (e *BusError) Error() string {
	s := e.Err.Error() + ": " + e.Op + " reg 0x" + strconv.FormatUint(uint64(e.Reg), 16)
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *BusError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// IsConfigError reports whether err came from configuration resolution.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsBusError reports whether err came from the bus collaborator.
func IsBusError(err error) bool {
	var be *BusError
	return errors.As(err, &be)
}

func configErr(f Field, err error) error { return &ConfigError{Field: f, Err: err} }
