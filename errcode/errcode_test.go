package errcode

import (
	"context"
	"errors"
	"testing"

	"bmscode-go/drivers/bq769x0"
)

func TestMapDriverErr(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{&bq769x0.ConfigError{Field: bq769x0.FieldSCD, Err: bq769x0.ErrThresholdUnattainable}, ThresholdUnattainable},
		{&bq769x0.ConfigError{Err: bq769x0.ErrIncompatibleCurrentRanges}, IncompatibleRanges},
		{&bq769x0.BusError{Op: "read", Reg: 0x0C, Err: bq769x0.ErrNoAcknowledge, Cause: errors.New("i2c: nack")}, NoAck},
		{&bq769x0.BusError{Op: "verify", Reg: 0x05, Err: bq769x0.ErrVerifyMismatch}, VerifyMismatch},
		{bq769x0.ErrBalanceAdjacent, BalanceRejected},
		{bq769x0.ErrNotInitialized, NotInitialized},
		{context.DeadlineExceeded, Timeout},
		{&E{C: Busy, Err: errors.New("x")}, Busy},
		{InvalidTopic, InvalidTopic},
		{errors.New("something else"), Error},
	}
	for _, c := range cases {
		if got := MapDriverErr(c.err); got != c.want {
			t.Errorf("%v: got %q want %q", c.err, got, c.want)
		}
	}
}

func TestE(t *testing.T) {
	e := &E{C: InvalidParams, Msg: "ocd_delay_ms: 30"}
	if e.Error() != "invalid_params: ocd_delay_ms: 30" {
		t.Fatalf("got %q", e.Error())
	}
	if Of(e) != InvalidParams {
		t.Fatal("Of")
	}
}
