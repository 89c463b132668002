package jobs

import (
	"context"
	"log"
	"time"

	"github.com/yieldnest/invest_api/services"
)

const accrualJobTimeout = 10 * time.Minute

type PeriodicAccruer interface {
	RunPeriodicAccrual(ctx context.Context) (services.AccrualRun, error)
}

// AccrualJob runs one periodic accrual sweep per cron tick.
func AccrualJob(a PeriodicAccruer) func() {
	return func() {
		log.Println("Running job: PeriodicAccrual...")

		ctx, cancel := context.WithTimeout(context.Background(), accrualJobTimeout)
		defer cancel()

		run, err := a.RunPeriodicAccrual(ctx)
		if err != nil {
			log.Printf("🔥 Periodic accrual failed: %v", err)
			return
		}
		if run.Candidates == 0 {
			log.Println("No investments due for accrual.")
			return
		}
		log.Printf("✅ Accrual credited %d of %d investment(s), %s total (%d skipped, %d failed).",
			run.Credited, run.Candidates, run.Amount.StringFixed(2), run.Skipped, run.Failed)
	}
}
