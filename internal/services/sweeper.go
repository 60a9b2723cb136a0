package services

import (
	"context"
	"log"
	"time"
)

// EscalationSweeper periodically runs the triage engine's escalation sweep.
// Same lifecycle contract as the dispatch refresher: Start spawns, Stop
// cancels and waits.
type EscalationSweeper struct {
	engine   *TriageEngine
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewEscalationSweeper(engine *TriageEngine, interval time.Duration) *EscalationSweeper {
	return &EscalationSweeper{engine: engine, interval: interval}
}

func (s *EscalationSweeper) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := s.engine.SweepEscalations(); err != nil {
					log.Printf("⚠️  [TRIAGE] Escalation sweep failed: %v", err)
				} else if n > 0 {
					log.Printf("🚨 [TRIAGE] Escalation sweep flagged %d grievances", n)
				}
			}
		}
	}(s.done)

	log.Printf("🔄 [TRIAGE] Escalation sweeper started (every %s)", s.interval)
}

func (s *EscalationSweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	log.Println("🔴 [TRIAGE] Escalation sweeper stopped")
}
