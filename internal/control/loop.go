package control

import (
	"context"
	"time"
)

// Start launches the governor control loop. Each tick drains the telemetry
// source and feeds probes and samples through the governance chain. No
// decision happens outside a tick; the breaker timeout is evaluated lazily
// when samples arrive.
func (e *Engine) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	e.stopLoop = cancel
	e.loopDone = make(chan struct{})

	go e.run(loopCtx)

	e.log.Info("governor started", "poll_interval", e.cfg.Governor.PollInterval)
	return nil
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.loopDone)

	interval := e.cfg.Governor.PollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick processes one round of telemetry. Exposed so event-triggered callers
// can drive the governor without waiting for the poll ticker.
func (e *Engine) Tick(ctx context.Context) {
	probes, err := e.source.NextProbes(ctx)
	if err != nil {
		e.log.Error("failed to read probes", "error", err)
	}
	for _, probe := range probes {
		if _, err := e.detector.RecordProbe(probe.DependencyID, probe.Status, probe.Latency, probe.Error); err != nil {
			e.log.Warn("dropping probe", "dependency", probe.DependencyID, "error", err)
		}
	}

	samples, err := e.source.NextSamples(ctx)
	if err != nil {
		e.log.Error("failed to read samples", "error", err)
	}
	for _, s := range samples {
		if _, err := e.HandleFailure(ctx, s.DependencyID, s.ErrorRate, s.LatencyMs, s.QueueDepth); err != nil {
			e.log.Warn("dropping sample", "dependency", s.DependencyID, "error", err)
		}
	}
}

// Stop shuts the control loop down and closes infra connections.
func (e *Engine) Stop(ctx context.Context) error {
	if e.stopLoop != nil {
		e.stopLoop()
		select {
		case <-e.loopDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if e.redisClient != nil {
		if err := e.redisClient.Close(); err != nil {
			e.log.Error("failed to close redis", "error", err)
		}
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.log.Error("failed to close database", "error", err)
		}
	}

	e.log.Info("governor stopped")
	return nil
}
