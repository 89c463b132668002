package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yieldnest/invest_api/models"
)

const defaultEarningsLimit = 50

func (l *Ledger) ListUserInvestments(ctx context.Context, userID uuid.UUID) ([]models.Investment, error) {
	return l.store.ListUserInvestments(ctx, userID)
}

type EarningsSummary struct {
	Entries []models.EarningLog `json:"entries"`
	Since   *time.Time          `json:"since,omitempty"`
	Total   decimal.Decimal     `json:"total"`
}

// ListUserEarnings returns the newest earnings log entries and the ROI credited
// since the given instant, or over the account's lifetime when since is nil.
func (l *Ledger) ListUserEarnings(ctx context.Context, userID uuid.UUID, limit int, since *time.Time) (*EarningsSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultEarningsLimit
	}
	entries, err := l.store.ListEarnings(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	from := time.Time{}
	if since != nil {
		from = since.UTC()
	}
	total, err := l.store.SumEarnings(ctx, userID, from, models.EarningTypeROI)
	if err != nil {
		return nil, err
	}
	return &EarningsSummary{Entries: entries, Since: since, Total: total}, nil
}
