package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	EarningTypeFirstROI = "first_roi"
	EarningTypeROI      = "roi"
)

// EarningLog is append-only.
type EarningLog struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	InvestmentID uuid.UUID       `gorm:"type:uuid;not null;index" json:"investment_id"`
	Amount       decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	Days         int             `gorm:"not null" json:"days"`
	DailyPercent decimal.Decimal `gorm:"type:numeric(10,6);not null" json:"daily_percent"`
	Type         string          `gorm:"size:20;not null;index" json:"type"`
	PlanName     string          `gorm:"size:50" json:"plan_name"`
	CreatedAt    time.Time       `gorm:"index" json:"created_at"`
}

func (e *EarningLog) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
