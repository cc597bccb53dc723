// Package bms runs one bq769x0 AFE as a bus capability: it samples the
// monitor periodically, publishes retained values on
// hal/cap/power/bms/<name>/{info,value,status} and serves control verbs on
// hal/cap/power/bms/<name>/control/<verb>.
package bms

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"bmscode-go/bus"
	"bmscode-go/drivers/bq769x0"
	"bmscode-go/errcode"
	"bmscode-go/types"
)

const domain = "power"

// Service owns one Device from a single goroutine (Run).
type Service struct {
	p    Params
	addr types.CapabilityAddress
	conn *bus.Connection
	log  *slog.Logger
	now  func() time.Time

	dev        *bq769x0.Device
	configured bool
	shipped    bool
	link       types.Link
	faults     bq769x0.Status
	cells      []bq769x0.MilliVolts
}

// New validates p and binds the service to an AFE bus and a bus connection.
// No hardware is touched until Run.
func New(p Params, afe bq769x0.Bus, conn *bus.Connection, log *slog.Logger) (*Service, error) {
	p.Defaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if _, err := p.Request(); err != nil {
		return nil, err
	}
	dev, err := bq769x0.New(afe, p.AFEVariant(), p.Cells)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		p:     p,
		addr:  types.CapabilityAddress{Domain: domain, Kind: types.KindBMS, Name: p.Name},
		conn:  conn,
		log:   log.With("bms", p.Name),
		now:   time.Now,
		dev:   dev,
		cells: make([]bq769x0.MilliVolts, 0, p.Cells),
	}, nil
}

// Topic returns hal/cap/power/bms/<name>/<tail...>.
func (s *Service) Topic(tail ...string) bus.Topic { return bus.T(s.addr.Tokens(tail...)...) }

// Start runs the service in its own goroutine.
func (s *Service) Start(ctx context.Context) error {
	go s.Run(ctx)
	return nil
}

// Run configures the AFE and serves until ctx is cancelled. A failed Init is
// retried every poll period.
func (s *Service) Run(ctx context.Context) {
	ctl := s.conn.Subscribe(s.Topic("control", bus.Single))
	defer s.conn.Unsubscribe(ctl)

	tick := time.NewTicker(s.p.Poll())
	defer tick.Stop()

	s.log.Info("bms service starting", "variant", s.p.Variant, "cells", s.p.Cells, "bus", s.p.Bus, "addr", s.p.Addr)
	s.configure()

	for {
		select {
		case <-ctx.Done():
			s.setLink(types.LinkDown, "")
			s.log.Info("bms service stopping")
			return
		case <-tick.C:
			switch {
			case s.shipped:
			case !s.configured:
				s.configure()
			default:
				s.sampleAndPublish()
			}
		case msg, ok := <-ctl.Channel():
			if !ok {
				return
			}
			s.handle(msg)
		}
	}
}

// ---- configuration ----

func (s *Service) configure() {
	req, _ := s.p.Request() // checked in New
	rc, err := s.dev.Init(req)
	if err != nil {
		s.fail("init", err)
		return
	}
	if c := s.p.Curve(); c != nil {
		if err := s.dev.SetThermistorCurve(c); err != nil {
			s.fail("thermistor", err)
			return
		}
	}
	if err := s.dev.SelectTemperatureSource(s.p.Source()); err != nil {
		s.fail("temp_source", err)
		return
	}
	s.configured = true
	s.log.Info("bms configured",
		"range", rc.Range.String(),
		"scd", rc.SCD.String(), "ocd", rc.OCD.String(),
		"uv", rc.UV.String(), "ov", rc.OV.String(),
		"gain_uV", s.dev.Calibration().GainMicroV, "offset_mV", s.dev.Calibration().OffsetMilliV)
	s.publishInfo(rc)
	s.sampleAndPublish()
}

func (s *Service) publishInfo(rc bq769x0.ResolvedConfig) {
	vi, _ := s.dev.Variant().Info()
	req, _ := s.p.Request()
	cal := s.dev.Calibration()
	info := types.BMSInfo{
		Variant:      s.dev.Variant().String(),
		Cells:        s.dev.Cells(),
		Thermistors:  vi.Thermistors,
		Bus:          s.p.Bus,
		Addr:         s.p.Addr,
		Shunt_uOhm:   s.p.Shunt_uOhm,
		GainMicroV:   cal.GainMicroV,
		OffsetMilliV: cal.OffsetMilliV,
		Range:        rc.Range.String(),
		SCD_mA:       int32(rc.SCD),
		SCDDelay:     uint32(req.SCDDelay.Duration() / time.Microsecond),
		OCD_mA:       int32(rc.OCD),
		OCDDelay:     uint32(req.OCDDelay.Duration() / time.Millisecond),
		UV_mV:        int32(rc.UV),
		UVDelay:      uint32(req.UVDelay.Duration() / time.Second),
		OV_mV:        int32(rc.OV),
		OVDelay:      uint32(req.OVDelay.Duration() / time.Second),
	}
	s.conn.Publish(s.conn.NewMessage(s.Topic("info"),
		types.Info{SchemaVersion: 1, Driver: "bq769x0", Detail: info}, true))
}

// ---- sampling ----

func (s *Service) sampleAndPublish() (types.BMSValue, error) {
	v, err := s.sample()
	if err != nil {
		s.fail("sample", err)
		return v, err
	}
	s.conn.Publish(s.conn.NewMessage(s.Topic("value"), v, true))
	s.setLink(types.LinkUp, "")
	return v, nil
}

func (s *Service) sample() (types.BMSValue, error) {
	var v types.BMSValue
	var err error

	if s.cells, err = s.dev.AppendCellVoltages(s.cells[:0]); err != nil {
		return v, err
	}
	v.Cells_mV = make([]int32, len(s.cells))
	for i, c := range s.cells {
		v.Cells_mV[i] = int32(c)
	}

	pack, err := s.dev.PackVoltage()
	if err != nil {
		return v, err
	}
	v.Pack_mV = int32(pack)

	cur, err := s.dev.Current()
	if err != nil {
		return v, err
	}
	v.Current_mA = int32(cur)

	st, err := s.dev.Status()
	if err != nil {
		return v, err
	}
	v.Status = uint8(st)
	v.Faults = st.Faults().String()
	s.noteFaults(st.Faults())

	if v.Charging, err = s.dev.Charging(); err != nil {
		return v, err
	}
	if v.Discharging, err = s.dev.Discharging(); err != nil {
		return v, err
	}
	bal, err := s.dev.Balancing()
	if err != nil {
		return v, err
	}
	v.Balancing = uint16(bal)

	v.TempSource = s.dev.TemperatureSource().String()
	temps, err := s.dev.Temperatures()
	switch {
	case err == nil:
		v.Temps_cC = make([]int32, len(temps))
		for i, t := range temps {
			v.Temps_cC[i] = int32(t)
		}
	case errors.Is(err, bq769x0.ErrTemperatureSettling):
		// omitted until the ADC settles
	default:
		return v, err
	}

	v.TS = s.now().UnixNano()
	return v, nil
}

func (s *Service) noteFaults(f bq769x0.Status) {
	if f == s.faults {
		return
	}
	if f != 0 {
		s.log.Warn("bms faults latched", "faults", f.String())
	} else {
		s.log.Info("bms faults cleared", "was", s.faults.String())
	}
	s.faults = f
}

// ---- status ----

func (s *Service) fail(op string, err error) {
	code := errcode.MapDriverErr(err)
	s.log.Error("bms "+op+" failed", "err", err, "code", string(code))
	s.setLink(types.LinkDegraded, string(code))
}

// setLink publishes status on transitions and on every degraded report.
func (s *Service) setLink(l types.Link, code string) {
	if l == s.link && l == types.LinkUp {
		return
	}
	s.link = l
	st := types.CapabilityStatus{Link: l, TS: s.now().UnixNano(), Error: code}
	s.conn.Publish(s.conn.NewMessage(s.Topic("status"), st, true))
}

// ---- controls ----

func (s *Service) handle(msg *bus.Message) {
	verb, _ := msg.Topic[len(msg.Topic)-1].(string)
	val, err := s.control(verb, msg.Payload)
	rep := types.Reply{OK: true, Value: val}
	if err != nil {
		rep = types.Reply{Error: string(errcode.MapDriverErr(err))}
		s.log.Warn("bms control failed", "verb", verb, "err", err, "code", rep.Error)
	} else {
		s.log.Debug("bms control", "verb", verb)
	}
	s.conn.Reply(msg, rep, false)
}

func (s *Service) control(verb string, payload any) (any, error) {
	if s.shipped {
		return nil, errcode.Unsupported
	}
	var err error
	switch verb {
	case "read":
		if !s.configured {
			return nil, bq769x0.ErrNotInitialized
		}
		return s.sampleAndPublish()
	case "charge", "discharge":
		var v types.SwitchSet
		if v, err = decode[types.SwitchSet](payload); err != nil {
			return nil, err
		}
		if verb == "charge" {
			err = s.dev.SetCharge(v.On)
		} else {
			err = s.dev.SetDischarge(v.On)
		}
	case "balance":
		var v types.BalanceSet
		if v, err = decode[types.BalanceSet](payload); err != nil {
			return nil, err
		}
		err = s.dev.SetBalancing(bq769x0.BalanceMask(v.Mask))
	case "clear_status":
		var v types.StatusClear
		if payload != nil {
			if v, err = decode[types.StatusClear](payload); err != nil {
				return nil, err
			}
		}
		m := bq769x0.Status(v.Mask)
		if m == 0 {
			m = bq769x0.StatusAll
		}
		err = s.dev.ClearStatus(m)
	case "temp_source":
		var v types.TempSourceSet
		if v, err = decode[types.TempSourceSet](payload); err != nil {
			return nil, err
		}
		src := bq769x0.SourceInternal
		if v.External {
			if s.p.Curve() == nil {
				return nil, bq769x0.ErrThermistorCurveUndefined
			}
			src = bq769x0.SourceExternal
		}
		err = s.dev.SelectTemperatureSource(src)
	case "ship":
		if err = s.dev.EnterShipMode(); err == nil {
			s.shipped, s.configured = true, false
			s.log.Warn("bms entered ship mode")
			s.setLink(types.LinkDown, "ship")
			return nil, nil
		}
	default:
		return nil, errcode.Unsupported
	}
	if err != nil {
		return nil, err
	}
	if s.configured {
		s.sampleAndPublish()
	}
	return nil, nil
}

// decode accepts a typed payload, a pointer to one, or JSON (raw bytes or a
// generic map as produced by a JSON bridge).
func decode[T any](payload any) (T, error) {
	var zero T
	switch x := payload.(type) {
	case T:
		return x, nil
	case *T:
		if x == nil {
			return zero, errcode.InvalidPayload
		}
		return *x, nil
	case []byte:
		return unmarshal[T](x)
	case json.RawMessage:
		return unmarshal[T](x)
	case map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return zero, errcode.InvalidPayload
		}
		return unmarshal[T](b)
	default:
		return zero, errcode.InvalidPayload
	}
}

func unmarshal[T any](b []byte) (T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return v, &errcode.E{C: errcode.InvalidPayload, Msg: err.Error(), Err: err}
	}
	return v, nil
}
