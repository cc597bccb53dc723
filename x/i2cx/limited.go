// Package i2cx holds adapters around the tinygo.org/x/drivers I2C contract.
package i2cx

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
	"tinygo.org/x/drivers"
)

// Limited serialises and paces transactions on a shared bus. Linux I2C
// adapters share the bus with other clients; the AFE also needs a gap
// between back-to-back transfers.
type Limited struct {
	mu  sync.Mutex
	bus drivers.I2C
	lim *rate.Limiter
	ctx context.Context
}

// NewLimited allows opsPerSec transactions with the given burst. A cancelled
// ctx fails every pending and later Tx with ctx.Err().
func NewLimited(ctx context.Context, bus drivers.I2C, opsPerSec float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Limit(opsPerSec), burst)
	if opsPerSec <= 0 {
		lim = rate.NewLimiter(rate.Inf, burst)
	}
	return &Limited{bus: bus, lim: lim, ctx: ctx}
}

func (l *Limited) Tx(addr uint16, w, r []byte) error {
	if err := l.lim.Wait(l.ctx); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bus.Tx(addr, w, r)
}
