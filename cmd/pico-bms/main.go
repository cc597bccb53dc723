//go:build rp2040 || rp2350

// Command pico-bms runs the bq769x0 monitor on a Pico with the AFE on I2C0
// (GP4 SDA, GP5 SCL) and prints samples to the USB console.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"machine"
	"runtime"
	"strconv"
	"time"

	"bmscode-go/bus"
	"bmscode-go/drivers/bq769x0"
	"bmscode-go/services/bms"
	"bmscode-go/services/config"
	"bmscode-go/services/heartbeat"
	"bmscode-go/types"
)

const deviceID = "pico-bms"

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, deviceID)

	println("[main] bootstrapping bus …")
	b := bus.NewBus(4)
	if err := config.NewConfigService().Start(ctx, b.NewConnection("config")); err != nil {
		println("[main] config:", err.Error())
		return
	}
	params, err := loadParams(ctx, b.NewConnection("boot"))
	if err != nil {
		println("[main] bms params:", err.Error())
		return
	}

	sda, scl := machine.GP4, machine.GP5
	sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
	scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
	if err := machine.I2C0.Configure(machine.I2CConfig{SDA: sda, SCL: scl, Frequency: 100_000}); err != nil {
		println("[main] i2c0 configure:", err.Error())
	}
	afe := bq769x0.NewI2CBus(machine.I2C0, params.Addr, params.UseCRC())

	svc, err := bms.New(params, afe, b.NewConnection("bms"), nil)
	if err != nil {
		println("[main] bms params:", err.Error())
		return
	}
	hb := &heartbeat.Service{}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))

	ui := b.NewConnection("ui")
	mon := ui.Subscribe(bus.T("hal", "#"))
	beats := ui.Subscribe(heartbeat.TopicBeat)
	_ = svc.Start(ctx)

	for {
		var m *bus.Message
		select {
		case m = <-mon.Channel():
		case m = <-beats.Channel():
		}
		switch v := m.Payload.(type) {
		case types.BMSValue:
			print("[bms] pack=", v.Pack_mV, "mV i=", v.Current_mA, "mA cells=")
			for i, c := range v.Cells_mV {
				if i > 0 {
					print(",")
				}
				print(c)
			}
			println(" faults=" + v.Faults)
			printMem()
		case heartbeat.Beat:
			println("[hb] seq=", v.Seq, "uptime_ms=", v.UptimeMs)
		case types.CapabilityStatus:
			println("[bms] link=" + string(v.Link) + " err=" + v.Error)
		case types.Info:
			if bi, ok := v.Detail.(types.BMSInfo); ok {
				println("[bms] " + bi.Variant + " cells=" + strconv.Itoa(int(bi.Cells)) +
					" scd=" + strconv.Itoa(int(bi.SCD_mA)) + "mA ocd=" + strconv.Itoa(int(bi.OCD_mA)) + "mA")
			}
		default:
			println("[monitor] <- " + m.Topic.String())
		}
	}
}

// loadParams takes the retained config/bms section and parses it.
func loadParams(ctx context.Context, conn *bus.Connection) (bms.Params, error) {
	sub := conn.Subscribe(config.Topic("bms"))
	defer conn.Unsubscribe(sub)
	select {
	case m := <-sub.Channel():
		raw, ok := m.Payload.(json.RawMessage)
		if !ok {
			return bms.Params{}, errors.New("config/bms: unexpected payload")
		}
		return bms.ParseParams(raw)
	case <-time.After(time.Second):
		return bms.Params{}, errors.New("config/bms: not published")
	case <-ctx.Done():
		return bms.Params{}, ctx.Err()
	}
}

// printMem prints a compact snapshot of TinyGo runtime memory stats.
func printMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	println("[mem]", "alloc:", uint32(ms.Alloc), "heapInuse:", uint32(ms.HeapInuse), "mallocs:", uint32(ms.Mallocs))
}
