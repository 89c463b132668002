package jobs

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

type Schedules struct {
	Accrual  string
	Maturity string
}

// Start registers the ledger jobs and starts the cron runner. Stop the
// returned cron on shutdown.
func Start(s Schedules, a PeriodicAccruer, n MaturityNotifier) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(s.Accrual, AccrualJob(a)); err != nil {
		return nil, fmt.Errorf("accrual schedule %q: %w", s.Accrual, err)
	}
	if _, err := c.AddFunc(s.Maturity, MaturityJob(n)); err != nil {
		return nil, fmt.Errorf("maturity schedule %q: %w", s.Maturity, err)
	}
	c.Start()
	log.Printf("✅ Cron jobs scheduled: accrual %q, maturity %q", s.Accrual, s.Maturity)
	return c, nil
}
