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

type invoiceRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *gorm.DB, logger *zap.Logger) repository.InvoiceRepository {
	return &invoiceRepository{db: db, logger: logger}
}

// Upsert stores the invoice snapshot unless a newer event already did
func (r *invoiceRepository) Upsert(ctx context.Context, invoice *model.Invoice) (bool, error) {
	updates := clause.AssignmentColumns([]string{
		"status",
		"currency",
		"amount_due_cents",
		"amount_paid_cents",
		"amount_paid",
		"attempt_count",
		"period_start",
		"period_end",
		"hosted_invoice_url",
		"last_event_at",
		"updated_at",
	})
	updates = append(updates,
		clause.Assignment{
			Column: clause.Column{Name: "stripe_subscription_id"},
			Value:  gorm.Expr("COALESCE(excluded.stripe_subscription_id, invoices.stripe_subscription_id)"),
		},
		clause.Assignment{
			Column: clause.Column{Name: "paid_at"},
			Value:  gorm.Expr("COALESCE(invoices.paid_at, excluded.paid_at)"),
		},
	)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_invoice_id"}},
			DoUpdates: updates,
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "(invoices.last_event_at IS NULL OR invoices.last_event_at <= excluded.last_event_at)"},
			}},
		}).
		Create(invoice)
	if result.Error != nil {
		r.logger.Error("Failed to upsert invoice",
			zap.String("stripe_invoice_id", invoice.StripeInvoiceID),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to upsert invoice: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (r *invoiceRepository) GetByStripeID(ctx context.Context, stripeInvoiceID string) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.WithContext(ctx).Where("stripe_invoice_id = ?", stripeInvoiceID).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &invoice, nil
}
