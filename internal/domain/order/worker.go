package order

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const autoConfirmBatchSize = 100

// Worker sweeps delivered orders whose receipt was never confirmed and
// settles them after the grace period.
type Worker struct {
	svc         *Service
	interval    time.Duration
	gracePeriod time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
}

func NewWorker(svc *Service, interval, gracePeriod time.Duration) *Worker {
	return &Worker{
		svc:         svc,
		interval:    interval,
		gracePeriod: gracePeriod,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

func (w *Worker) Start() {
	go w.run()
	log.Info().
		Dur("interval", w.interval).
		Dur("grace_period", w.gracePeriod).
		Msg("auto-confirm worker started")
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.doneCh
	log.Info().Msg("auto-confirm worker stopped")
}

func (w *Worker) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Worker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-w.gracePeriod)
	if err := w.svc.AutoConfirmOverdue(ctx, cutoff, autoConfirmBatchSize); err != nil {
		log.Error().Err(err).Msg("auto-confirm sweep failed to list candidates")
	}
}
