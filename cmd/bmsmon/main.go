// Command bmsmon runs the bq769x0 monitor service on a Linux host and logs
// every sample. With -once it prints a single reading as JSON and exits.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"bmscode-go/bus"
	"bmscode-go/drivers/bq769x0"
	"bmscode-go/services/bms"
	"bmscode-go/types"
	"bmscode-go/x/i2cx"
)

const maxOpsPerSec = 200

func main() {
	var (
		cfgPath  = flag.String("config", "", "JSON params file (required)")
		i2cName  = flag.String("i2c", "", "I2C bus name; empty selects the first bus")
		sim      = flag.Bool("sim", false, "use the in-memory AFE simulator")
		opsRate  = flag.Float64("rate", maxOpsPerSec, "max I2C transactions per second (0 = unlimited)")
		once     = flag.Bool("once", false, "print one reading as JSON and exit")
		logLevel = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	level := slog.LevelInfo
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *cfgPath == "" {
		slog.Error("missing -config")
		os.Exit(2)
	}
	raw, err := os.ReadFile(*cfgPath)
	if err != nil {
		slog.Error("read config", "path", *cfgPath, "err", err)
		os.Exit(1)
	}
	p, err := bms.ParseParams(raw)
	if err != nil {
		slog.Error("invalid config", "path", *cfgPath, "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	afe, closeBus, err := openAFE(ctx, p, *i2cName, *sim, *opsRate)
	if err != nil {
		slog.Error("open bus", "err", err)
		os.Exit(1)
	}
	defer closeBus()

	if err := run(ctx, p, afe, *once); err != nil {
		slog.Error("bmsmon failed", "err", err)
		os.Exit(1)
	}
	slog.Info("bmsmon stopped")
}

// openAFE returns the register bus for p: the simulator, or a CRC-framed
// I2C bus behind a rate limiter.
func openAFE(ctx context.Context, p bms.Params, name string, sim bool, opsRate float64) (bq769x0.Bus, func(), error) {
	if sim {
		slog.Info("using simulated AFE")
		return seededSim(p), func() {}, nil
	}
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}
	if name == "" {
		name = p.Bus
	}
	bc, err := i2creg.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("open i2c %q: %w", name, err)
	}
	slog.Info("i2c bus open", "bus", bc.String(), "addr", p.Addr, "crc", p.UseCRC(), "rate", opsRate)
	lim := i2cx.NewLimited(ctx, bc, opsRate, 4)
	return bq769x0.NewI2CBus(lim, p.Addr, p.UseCRC()), func() { _ = bc.Close() }, nil
}

// seededSim fills the simulator with a plausible resting pack.
func seededSim(p bms.Params) *bq769x0.SimBus {
	s := bq769x0.NewSimBus()
	vi, _ := p.AFEVariant().Info()
	for i, in := range vi.CellInputs(p.Cells) {
		s.SetCellVoltage(in, bq769x0.MilliVolts(3700+5*i))
	}
	cal := s.Calibration()
	pack := int64(p.Cells) * 3700 * 1000 / (4 * int64(cal.GainMicroV))
	s.SetPackCode(uint16(pack))
	s.SetCurrent(-1500, bq769x0.MicroOhms(p.Shunt_uOhm))
	for n := uint8(0); n < vi.Thermistors; n++ {
		s.SetTSCode(n, 3141) // ~25 °C die
	}
	return s
}

func run(ctx context.Context, p bms.Params, afe bq769x0.Bus, once bool) error {
	b := bus.NewBus(16)
	svc, err := bms.New(p, afe, b.NewConnection("bms"), slog.Default())
	if err != nil {
		return err
	}
	ui := b.NewConnection("ui")
	values := ui.Subscribe(svc.Topic("value"))
	status := ui.Subscribe(svc.Topic("status"))

	svcCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	_ = svc.Start(svcCtx)

	if once {
		rctx, rcancel := context.WithTimeout(ctx, 5*time.Second)
		defer rcancel()
		for {
			select {
			case <-rctx.Done():
				return fmt.Errorf("no reading: %w", rctx.Err())
			case m := <-status.Channel():
				if st, ok := m.Payload.(types.CapabilityStatus); ok && st.Link == types.LinkDegraded {
					return fmt.Errorf("afe degraded: %s", st.Error)
				}
			case m := <-values.Channel():
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(m.Payload)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-status.Channel():
			if st, ok := m.Payload.(types.CapabilityStatus); ok {
				slog.Info("status", "topic", m.Topic.String(), "link", string(st.Link), "error", st.Error)
			}
		case m := <-values.Channel():
			v, ok := m.Payload.(types.BMSValue)
			if !ok {
				continue
			}
			slog.Info("sample",
				"pack_mV", v.Pack_mV,
				"current_mA", v.Current_mA,
				"cells_mV", v.Cells_mV,
				"temps_cC", v.Temps_cC,
				"faults", v.Faults,
				"chg", v.Charging,
				"dsg", v.Discharging)
		}
	}
}
