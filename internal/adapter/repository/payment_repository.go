package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hudsor01/tenant-flow-sub011/internal/domain/model"
	"github.com/hudsor01/tenant-flow-sub011/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type paymentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB, logger *zap.Logger) repository.PaymentRepository {
	return &paymentRepository{db: db, logger: logger}
}

// Upsert records a payment intent outcome. A succeeded payment is final.
func (r *paymentRepository) Upsert(ctx context.Context, payment *model.Payment) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider_payment_intent_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status",
				"amount_cents",
				"amount",
				"currency",
				"failure_code",
				"failure_message",
				"paid_at",
				"metadata",
				"updated_at",
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "payments.status <> ?", Vars: []interface{}{model.PaymentStatusSucceeded}},
			}},
		}).
		Create(payment)
	if result.Error != nil {
		r.logger.Error("Failed to upsert payment",
			zap.String("payment_intent_id", payment.ProviderPaymentIntentID),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to upsert payment: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// GetByPaymentIntentID retrieves a payment by provider payment intent id
func (r *paymentRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("provider_payment_intent_id = ?", paymentIntentID).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get payment",
			zap.String("payment_intent_id", paymentIntentID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}
