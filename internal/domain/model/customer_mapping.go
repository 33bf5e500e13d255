package model

import (
	"time"

	"github.com/google/uuid"
)

// CustomerMapping maps provider customer IDs to users. It is written by the
// checkout flow and only read here.
type CustomerMapping struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProviderCustomerID string    `gorm:"column:provider_customer_id;uniqueIndex;not null;size:100" json:"provider_customer_id"`
	UserID             uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	CustomerEmail      string    `gorm:"size:255" json:"customer_email"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (CustomerMapping) TableName() string {
	return "customer_mappings"
}
