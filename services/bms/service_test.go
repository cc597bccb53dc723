package bms

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"bmscode-go/bus"
	"bmscode-go/drivers/bq769x0"
	"bmscode-go/types"
)

func testParams() Params {
	return Params{
		Name:       "pack",
		Bus:        "sim",
		Variant:    "bq76920",
		Cells:      4,
		Shunt_uOhm: 1000,
		SCD_mA:     80000,
		OCD_mA:     30000,
		PollMs:     20,
	}
}

type harness struct {
	svc *Service
	sim *bq769x0.SimBus
	b   *bus.Bus
	cli *bus.Connection
	ctx context.Context
}

func newHarness(t *testing.T, prep func(*bq769x0.SimBus)) *harness {
	t.Helper()
	sim := bq769x0.NewSimBus()
	for i, in := range []uint8{0, 1, 2, 4} {
		sim.SetCellVoltage(in, bq769x0.MilliVolts(3600+10*i))
	}
	sim.SetPackCode(3800)
	if prep != nil {
		prep(sim)
	}
	b := bus.NewBus(32)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := New(testParams(), sim, b.NewConnection("bms"), log)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := svc.Start(ctx); err != nil {
		t.Fatal(err)
	}
	return &harness{svc: svc, sim: sim, b: b, cli: b.NewConnection("test"), ctx: ctx}
}

func waitFor[T any](t *testing.T, sub *bus.Subscription, ok func(T) bool) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if v, is := m.Payload.(T); is && ok(v) {
				return v
			}
		case <-deadline:
			var zero T
			t.Fatalf("timeout waiting for %T on %v", zero, sub.Topic())
			return zero
		}
	}
}

func (h *harness) control(t *testing.T, verb string, payload any) types.Reply {
	t.Helper()
	ctx, cancel := context.WithTimeout(h.ctx, time.Second)
	defer cancel()
	rep, err := h.cli.RequestWait(ctx, h.cli.NewMessage(h.svc.Topic("control", verb), payload, false))
	if err != nil {
		t.Fatalf("%s: %v", verb, err)
	}
	r, ok := rep.Payload.(types.Reply)
	if !ok {
		t.Fatalf("%s: reply %#v", verb, rep.Payload)
	}
	return r
}

func TestServicePublishesInfoAndValue(t *testing.T) {
	h := newHarness(t, nil)

	vs := h.cli.Subscribe(h.svc.Topic("value"))
	v := waitFor(t, vs, func(v types.BMSValue) bool { return len(v.Cells_mV) == 4 })
	for i, mv := range v.Cells_mV {
		want := int32(3600 + 10*i)
		if mv > want || mv < want-1 {
			t.Fatalf("cell %d: %d want %d", i, mv, want)
		}
	}
	if v.Pack_mV == 0 || v.TempSource != "internal" || v.Faults != "" {
		t.Fatalf("value %+v", v)
	}

	is := h.cli.Subscribe(h.svc.Topic("info"))
	info := waitFor(t, is, func(types.Info) bool { return true })
	bi, ok := info.Detail.(types.BMSInfo)
	if !ok || info.Driver != "bq769x0" {
		t.Fatalf("info %#v", info)
	}
	if bi.Variant != "bq76920" || bi.Cells != 4 || bi.Range != "lower" || bi.SCD_mA > 80000 || bi.OCD_mA > 30000 {
		t.Fatalf("info detail %+v", bi)
	}
	if bi.GainMicroV != h.sim.Calibration().GainMicroV {
		t.Fatalf("gain %d", bi.GainMicroV)
	}

	ss := h.cli.Subscribe(h.svc.Topic("status"))
	waitFor(t, ss, func(s types.CapabilityStatus) bool { return s.Link == types.LinkUp })
}

func TestServiceControls(t *testing.T) {
	h := newHarness(t, nil)
	ss := h.cli.Subscribe(h.svc.Topic("status"))
	waitFor(t, ss, func(s types.CapabilityStatus) bool { return s.Link == types.LinkUp })

	if r := h.control(t, "charge", types.SwitchSet{On: true}); !r.OK {
		t.Fatalf("charge: %+v", r)
	}
	if r := h.control(t, "discharge", []byte(`{"on":true}`)); !r.OK {
		t.Fatalf("discharge: %+v", r)
	}
	if h.sim.Register(0x05)&0x03 != 0x03 {
		t.Fatalf("SYS_CTRL2 %#02x", h.sim.Register(0x05))
	}

	h.sim.Raise(bq769x0.StatusOV)
	if r := h.control(t, "charge", &types.SwitchSet{On: true}); r.OK || r.Error != "verify_mismatch" {
		t.Fatalf("charge under OV: %+v", r)
	}
	if r := h.control(t, "clear_status", nil); !r.OK {
		t.Fatalf("clear: %+v", r)
	}
	if r := h.control(t, "charge", map[string]any{"on": true}); !r.OK {
		t.Fatalf("charge after clear: %+v", r)
	}

	if r := h.control(t, "balance", types.BalanceSet{Mask: 0b0011}); r.Error != "balance_rejected" {
		t.Fatalf("adjacent balance: %+v", r)
	}
	if r := h.control(t, "balance", types.BalanceSet{Mask: 0b1001}); !r.OK {
		t.Fatalf("balance: %+v", r)
	}
	if r := h.control(t, "balance", "cells 1 and 4"); r.Error != "invalid_payload" {
		t.Fatalf("bad payload: %+v", r)
	}
	if r := h.control(t, "temp_source", types.TempSourceSet{External: true}); r.Error != "thermistor_curve_undefined" {
		t.Fatalf("external without curve: %+v", r)
	}
	if r := h.control(t, "explode", nil); r.Error != "unsupported" {
		t.Fatalf("unknown verb: %+v", r)
	}

	r := h.control(t, "read", nil)
	v, ok := r.Value.(types.BMSValue)
	if !r.OK || !ok || !v.Charging || !v.Discharging || v.Balancing != 0b1001 {
		t.Fatalf("read: %+v", r)
	}
}

func TestServiceRecoversFromInitFailure(t *testing.T) {
	h := newHarness(t, func(sim *bq769x0.SimBus) { sim.FailReads(bq769x0.ErrNoAcknowledge) })

	ss := h.cli.Subscribe(h.svc.Topic("status"))
	waitFor(t, ss, func(s types.CapabilityStatus) bool {
		return s.Link == types.LinkDegraded && s.Error == "no_ack"
	})
	if r := h.control(t, "read", nil); r.Error != "not_initialized" {
		t.Fatalf("read before init: %+v", r)
	}

	h.sim.FailReads(nil)
	waitFor(t, ss, func(s types.CapabilityStatus) bool { return s.Link == types.LinkUp })
}

func TestServiceShipMode(t *testing.T) {
	h := newHarness(t, nil)
	ss := h.cli.Subscribe(h.svc.Topic("status"))
	waitFor(t, ss, func(s types.CapabilityStatus) bool { return s.Link == types.LinkUp })

	if r := h.control(t, "ship", nil); !r.OK {
		t.Fatalf("ship: %+v", r)
	}
	if !h.sim.Shutdown() {
		t.Fatal("AFE not in ship mode")
	}
	waitFor(t, ss, func(s types.CapabilityStatus) bool { return s.Link == types.LinkDown && s.Error == "ship" })
	if r := h.control(t, "read", nil); r.Error != "unsupported" {
		t.Fatalf("read after ship: %+v", r)
	}
}
