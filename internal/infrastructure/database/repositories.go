package database

import (
	"github.com/hudsor01/tenant-flow-sub011/internal/adapter/repository"
	domainRepo "github.com/hudsor01/tenant-flow-sub011/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	WebhookEvent       domainRepo.WebhookEventRepository
	FailedWebhookEvent domainRepo.FailedWebhookEventRepository
	Subscription       domainRepo.SubscriptionRepository
	Invoice            domainRepo.InvoiceRepository
	Payment            domainRepo.PaymentRepository
	CustomerMapping    domainRepo.CustomerMappingRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		WebhookEvent:       repository.NewWebhookEventRepository(db, logger),
		FailedWebhookEvent: repository.NewFailedWebhookEventRepository(db, logger),
		Subscription:       repository.NewSubscriptionRepository(db, logger),
		Invoice:            repository.NewInvoiceRepository(db, logger),
		Payment:            repository.NewPaymentRepository(db, logger),
		CustomerMapping:    repository.NewCustomerMappingRepository(db),
	}
}
