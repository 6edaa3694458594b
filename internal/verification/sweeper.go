package verification

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

const sweepBatchSize = 50

// Sweeper periodically re-verifies companies stuck between a submitted
// chain write and a confirmed one. On-demand verification stays the primary
// path; the sweep just mops up interrupted confirmation waits.
type Sweeper struct {
	service *Service
	cron    *cron.Cron
	timeout time.Duration
}

func NewSweeper(service *Service, timeout time.Duration) *Sweeper {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Sweeper{
		service: service,
		cron:    cron.New(),
		timeout: timeout,
	}
}

// Start schedules the sweep. The schedule uses standard cron syntax, e.g.
// "*/10 * * * *" for every ten minutes.
func (s *Sweeper) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.runOnce); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.Sweep(ctx)
}

// Sweep resolves interrupted mints, then re-verifies linked-but-unverified
// companies. Failures are logged and skipped; the next sweep retries them.
func (s *Sweeper) Sweep(ctx context.Context) {
	pending, err := s.service.repo.ListPendingMints(ctx, sweepBatchSize)
	if err != nil {
		log.Printf("sweep: failed to list pending mints: %v", err)
	} else {
		for i := range pending {
			if err := s.service.ResolvePendingMint(ctx, &pending[i]); err != nil {
				log.Printf("sweep: could not resolve mint for company %s: %v", pending[i].ID, err)
			}
		}
	}

	unverified, err := s.service.repo.ListLinkedUnverified(ctx, sweepBatchSize)
	if err != nil {
		log.Printf("sweep: failed to list unverified companies: %v", err)
		return
	}
	for i := range unverified {
		if _, err := s.service.VerifyCompany(ctx, unverified[i].ID); err != nil {
			log.Printf("sweep: could not verify company %s: %v", unverified[i].ID, err)
		}
	}
}
