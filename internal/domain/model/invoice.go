package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice records the latest known state of a provider invoice.
type Invoice struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	StripeInvoiceID      string          `gorm:"uniqueIndex;not null;size:100" json:"stripe_invoice_id"`
	StripeSubscriptionID *string         `gorm:"size:100;index" json:"stripe_subscription_id,omitempty"`
	StripeCustomerID     string          `gorm:"size:100" json:"stripe_customer_id"`
	Status               string          `gorm:"size:30;not null" json:"status"`
	Currency             string          `gorm:"size:3" json:"currency"`
	AmountDueCents       int64           `gorm:"not null;default:0" json:"amount_due_cents"`
	AmountPaidCents      int64           `gorm:"not null;default:0" json:"amount_paid_cents"`
	AmountPaid           decimal.Decimal `gorm:"type:decimal(15,2)" json:"amount_paid"`
	AttemptCount         int64           `gorm:"not null;default:0" json:"attempt_count"`
	PeriodStart          *time.Time      `json:"period_start,omitempty"`
	PeriodEnd            *time.Time      `json:"period_end,omitempty"`
	HostedInvoiceURL     string          `gorm:"type:text" json:"hosted_invoice_url,omitempty"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
	LastEventAt          *time.Time      `json:"last_event_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Invoice) TableName() string {
	return "invoices"
}
