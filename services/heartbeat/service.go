package heartbeat

import (
	"context"
	"encoding/json"
	"time"

	"bmscode-go/bus"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	// TopicBeat carries a retained Beat on every tick.
	TopicBeat = bus.T("sys", "heartbeat")
)

const defaultInterval = time.Second

// Beat is published on TopicBeat.
type Beat struct {
	Seq      uint32 `json:"seq"`
	UptimeMs int64  `json:"uptime_ms"`
}

type settings struct {
	IntervalS float64 `json:"interval_s"`
}

type Service struct {
	start time.Time
	seq   uint32
}

// interval extracts a positive interval from a config/heartbeat payload.
func interval(payload any) (time.Duration, bool) {
	var s settings
	switch v := payload.(type) {
	case json.RawMessage:
		if json.Unmarshal(v, &s) != nil {
			return 0, false
		}
	case map[string]any:
		f, ok := v["interval_s"].(float64)
		if !ok {
			return 0, false
		}
		s.IntervalS = f
	default:
		return 0, false
	}
	if s.IntervalS <= 0 {
		return 0, false
	}
	return time.Duration(s.IntervalS * float64(time.Second)), true
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("Info: heartbeat service stopping")
			return
		case t := <-tick.C:
			s.seq++
			conn.Publish(conn.NewMessage(TopicBeat, Beat{Seq: s.seq, UptimeMs: t.Sub(s.start).Milliseconds()}, true))
		case msg := <-cfgSub.Channel():
			if d, ok := interval(msg.Payload); ok {
				tick.Reset(d)
				println("Info: heartbeat interval set to", d.String())
			}
		}
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	s.start = time.Now()
	go s.serviceLoop(ctx, conn)
	return nil
}
