package transport

import (
	"context"
	"time"
)

// RunDispatch drains the inbound queue into the subscribed handler, one
// message at a time in arrival order, until ctx is cancelled. A slow handler
// holds back every later message.
func (c *Connector) RunDispatch(ctx context.Context) {
	idle := time.NewTimer(c.cfg.IdleSleep)
	defer idle.Stop()

	for ctx.Err() == nil {
		msg, ok := c.inbound.Pop()
		if ok {
			c.dispatch(msg)
			continue
		}

		idle.Reset(c.cfg.IdleSleep)
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
		}
	}
}

func (c *Connector) dispatch(msg []byte) {
	c.handlerMu.RLock()
	handler := c.handler
	c.handlerMu.RUnlock()

	if handler == nil {
		c.logger.Warn("Inbound message without subscriber dropped", "bytes", len(msg))
		return
	}

	start := time.Now()
	defer func() {
		c.metrics.RecordDispatchLatency(float64(time.Since(start).Microseconds()) / 1000)
		if r := recover(); r != nil {
			c.logger.Error("Inbound handler panic recovered", "panic", r)
		}
	}()
	handler(msg)
}
