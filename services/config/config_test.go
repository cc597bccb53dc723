package config

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"bmscode-go/bus"
	"bmscode-go/services/bms"
)

func TestConfig_PublishEmbedded_RetainedPerKey(t *testing.T) {
	// Override lookup for this test.
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		if device != "pico" {
			return nil, false
		}
		return []byte(`{
			"mode": "dev",
			"bms": {"name": "pack"}
		}`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	svc := NewConfigService()

	ctx := context.WithValue(context.Background(), CtxDeviceKey, "pico")
	if err := svc.Start(ctx, conn); err != nil {
		t.Fatal(err)
	}

	// Retained messages arrive on subscribe.
	sub := conn.Subscribe(bus.Topic{configPrefix, "#"})
	got := map[string]json.RawMessage{}
	deadline := time.After(500 * time.Millisecond)
	for len(got) < 2 {
		select {
		case m := <-sub.Channel():
			key, ok := m.Topic[1].(string)
			if !ok || m.Topic[0] != configPrefix {
				t.Fatalf("unexpected topic %v", m.Topic)
			}
			raw, ok := m.Payload.(json.RawMessage)
			if !ok {
				t.Fatalf("%s payload type %T", key, m.Payload)
			}
			got[key] = raw
		case <-deadline:
			t.Fatalf("got %d retained messages, want 2", len(got))
		}
	}

	var mode string
	if err := json.Unmarshal(got["mode"], &mode); err != nil || mode != "dev" {
		t.Fatalf("mode %q %v", mode, err)
	}
	var section struct{ Name string }
	if err := json.Unmarshal(got["bms"], &section); err != nil || section.Name != "pack" {
		t.Fatalf("bms %+v %v", section, err)
	}
}

func TestConfig_EmbeddedBMSParamsValid(t *testing.T) {
	raw, ok := EmbeddedConfigLookup("pico-bms")
	if !ok {
		t.Fatal("no pico-bms config")
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	p, err := bms.ParseParams(m["bms"])
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Request(); err != nil {
		t.Fatal(err)
	}
}

func TestConfig_PublishConfig_MissingDevice(t *testing.T) {
	b := bus.NewBus(4)
	conn := b.NewConnection("test-missing-device")

	if err := NewConfigService().Start(context.Background(), conn); err == nil {
		t.Fatal("expected error for missing device ID, got nil")
	}
}

func TestConfig_PublishConfig_NoConfigFound(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) { return nil, false }
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(4)
	conn := b.NewConnection("test-no-config")

	ctx := context.WithValue(context.Background(), CtxDeviceKey, "unknown-device")
	if err := NewConfigService().Start(ctx, conn); err == nil {
		t.Fatal("expected error for missing embedded config, got nil")
	}
}
