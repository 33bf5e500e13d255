package model

import (
	"time"

	"gorm.io/datatypes"
)

// StripeWebhookEvent is the idempotency ledger row for one provider event.
// StripeEventID is immutable and unique; rows are never deleted here.
type StripeWebhookEvent struct {
	ID               int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	StripeEventID    string         `gorm:"uniqueIndex;not null;size:255" json:"stripe_event_id"`
	EventType        string         `gorm:"not null;size:100;index" json:"event_type"`
	APIVersion       string         `gorm:"size:32" json:"api_version,omitempty"`
	Livemode         bool           `gorm:"not null;default:false" json:"livemode"`
	EventCreatedAt   *time.Time     `json:"event_created_at,omitempty"`
	ReceivedAt       time.Time      `gorm:"not null" json:"received_at"`
	Processed        bool           `gorm:"not null;default:false;index" json:"processed"`
	ProcessingTimeMs *int64         `json:"processing_time_ms,omitempty"`
	ErrorMessage     *string        `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount       int            `gorm:"not null;default:0" json:"retry_count"`
	ClaimedAt        *time.Time     `json:"claimed_at,omitempty"`
	ProcessedAt      *time.Time     `json:"processed_at,omitempty"`
	Payload          datatypes.JSON `json:"payload,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (StripeWebhookEvent) TableName() string {
	return "stripe_webhook_events"
}

// FailedWebhookEvent is the manual-review record for an event whose handler failed.
// One row per event id; repeated failures bump AttemptCount.
type FailedWebhookEvent struct {
	ID                int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	StripeEventID     string     `gorm:"uniqueIndex;not null;size:255" json:"stripe_event_id"`
	EventType         string     `gorm:"not null;size:100" json:"event_type"`
	ProviderRequestID *string    `gorm:"size:255" json:"provider_request_id,omitempty"`
	ErrorClass        string     `gorm:"size:20;not null" json:"error_class"`
	ErrorCode         *string    `gorm:"size:100" json:"error_code,omitempty"`
	ErrorMessage      string     `gorm:"type:text;not null" json:"error_message"`
	AttemptCount      int        `gorm:"not null;default:1" json:"attempt_count"`
	FirstFailedAt     time.Time  `gorm:"not null" json:"first_failed_at"`
	LastFailedAt      time.Time  `gorm:"not null;index" json:"last_failed_at"`
	ResolvedAt        *time.Time `gorm:"index" json:"resolved_at,omitempty"`
}

// TableName specifies the table name for GORM
func (FailedWebhookEvent) TableName() string {
	return "failed_webhook_events"
}
