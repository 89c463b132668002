package jobs

import (
	"context"
	"log"
	"time"
)

type MaturityNotifier interface {
	NotifyMaturedInvestments(ctx context.Context) (int, error)
}

func MaturityJob(n MaturityNotifier) func() {
	return func() {
		log.Println("Running job: MaturityNotices...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		sent, err := n.NotifyMaturedInvestments(ctx)
		if err != nil {
			log.Printf("🔥 Maturity notices failed: %v", err)
			return
		}
		log.Printf("Sent %d maturity notice(s).", sent)
	}
}
