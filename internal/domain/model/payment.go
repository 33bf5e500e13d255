package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

// Payment is a one-off charge (rent) linked to a lease through payment intent metadata.
type Payment struct {
	ID                      int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProviderPaymentIntentID string          `gorm:"column:provider_payment_intent_id;uniqueIndex;not null;size:100" json:"provider_payment_intent_id"`
	LeaseID                 *uuid.UUID      `gorm:"type:uuid;index" json:"lease_id,omitempty"`
	TenantID                *uuid.UUID      `gorm:"type:uuid;index" json:"tenant_id,omitempty"`
	StripeCustomerID        string          `gorm:"size:100" json:"stripe_customer_id,omitempty"`
	PaymentType             string          `gorm:"size:30;not null" json:"payment_type"`
	AmountCents             int64           `gorm:"not null" json:"amount_cents"`
	Amount                  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Currency                string          `gorm:"size:3;not null" json:"currency"`
	Status                  string          `gorm:"size:30;not null" json:"status"`
	FailureCode             *string         `gorm:"size:100" json:"failure_code,omitempty"`
	FailureMessage          *string         `gorm:"type:text" json:"failure_message,omitempty"`
	Metadata                datatypes.JSON  `json:"metadata,omitempty"`
	PaidAt                  *time.Time      `json:"paid_at,omitempty"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Payment) TableName() string {
	return "payments"
}
