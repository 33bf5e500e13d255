package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	domainErrors "github.com/hudsor01/tenant-flow-sub011/internal/domain/errors"
	"github.com/hudsor01/tenant-flow-sub011/internal/domain/model"
	"github.com/hudsor01/tenant-flow-sub011/internal/middleware/auth"
	"github.com/hudsor01/tenant-flow-sub011/internal/usecase"
	pkgErrors "github.com/hudsor01/tenant-flow-sub011/pkg/errors"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const defaultListLimit = 50

type EventReplayer interface {
	Replay(ctx context.Context, eventID string) usecase.Result
}

type SubscriptionReconciler interface {
	Reconcile(ctx context.Context, subscriptionID string) (*model.Subscription, error)
}

type EventLookup interface {
	Get(ctx context.Context, eventID string) (*model.StripeWebhookEvent, error)
}

type FailureLister interface {
	ListUnresolved(ctx context.Context, limit int) ([]*model.FailedWebhookEvent, error)
}

// AdminHandler serves the operator API for failed events.
type AdminHandler struct {
	replayer   EventReplayer
	reconciler SubscriptionReconciler
	events     EventLookup
	failures   FailureLister
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewAdminHandler creates a new AdminHandler instance
func NewAdminHandler(
	replayer EventReplayer,
	reconciler SubscriptionReconciler,
	events EventLookup,
	failures FailureLister,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		replayer:   replayer,
		reconciler: reconciler,
		events:     events,
		failures:   failures,
		validate:   validator.New(),
		logger:     logger,
	}
}

type listFailedQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=500"`
}

// ListFailed returns unresolved failures, newest first
func (h *AdminHandler) ListFailed(c echo.Context) error {
	var q listFailedQuery
	if err := c.Bind(&q); err != nil {
		return pkgErrors.ToHTTPError(pkgErrors.NewAppError(pkgErrors.ErrInvalidArgument, "Invalid query parameters", err))
	}
	if err := h.validate.Struct(q); err != nil {
		return pkgErrors.ToHTTPError(pkgErrors.NewAppError(pkgErrors.ErrInvalidArgument, "limit must be between 1 and 500", err))
	}
	if q.Limit == 0 {
		q.Limit = defaultListLimit
	}

	failures, err := h.failures.ListUnresolved(c.Request().Context(), q.Limit)
	if err != nil {
		pkgErrors.LogError(h.logger, err, "Failed to list failed webhook events")
		return pkgErrors.ToHTTPError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"failures": failures,
		"count":    len(failures),
	})
}

// GetEvent returns the ledger row for one event id
func (h *AdminHandler) GetEvent(c echo.Context) error {
	eventID := c.Param("eventId")

	event, err := h.events.Get(c.Request().Context(), eventID)
	if err != nil {
		pkgErrors.LogError(h.logger, err, "Failed to get webhook event", zap.String("event_id", eventID))
		return pkgErrors.ToHTTPError(err)
	}
	if event == nil {
		return pkgErrors.ToHTTPError(pkgErrors.NewAppError(pkgErrors.ErrNotFound, "Event not found", domainErrors.ErrEventNotFound))
	}

	return c.JSON(http.StatusOK, event)
}

// Replay re-runs a stored event that never completed
func (h *AdminHandler) Replay(c echo.Context) error {
	eventID := c.Param("eventId")
	h.logOperator(c, "Webhook replay requested", zap.String("event_id", eventID))

	result := h.replayer.Replay(c.Request().Context(), eventID)

	switch {
	case result.Outcome == usecase.OutcomeProcessed:
		return c.JSON(http.StatusOK, echo.Map{
			"event_id":   result.EventID,
			"event_type": result.EventType,
			"outcome":    result.Outcome,
		})
	case errors.Is(result.Err, domainErrors.ErrEventNotFound):
		return pkgErrors.ToHTTPError(pkgErrors.NewAppError(pkgErrors.ErrNotFound, "Event not found", result.Err))
	case errors.Is(result.Err, domainErrors.ErrEventAlreadyProcessed):
		return pkgErrors.ToHTTPError(pkgErrors.NewAppError(pkgErrors.ErrConflict, "Event already processed", result.Err))
	case result.Outcome == usecase.OutcomeInFlight:
		return pkgErrors.ToHTTPError(pkgErrors.NewAppError(pkgErrors.ErrConflict, "Event is being processed", nil))
	case result.Outcome == usecase.OutcomeBadRequest:
		return pkgErrors.ToHTTPError(pkgErrors.NewAppError(pkgErrors.ErrInvalidArgument, "Stored event payload is invalid", result.Err))
	default:
		return pkgErrors.ToHTTPError(pkgErrors.NewAppError(pkgErrors.ErrInternal, "Replay failed", result.Err))
	}
}

// Reconcile refreshes a subscription from the provider
func (h *AdminHandler) Reconcile(c echo.Context) error {
	subscriptionID := c.Param("subscriptionId")
	h.logOperator(c, "Subscription reconcile requested", zap.String("subscription_id", subscriptionID))

	sub, err := h.reconciler.Reconcile(c.Request().Context(), subscriptionID)
	if err != nil {
		appErr := reconcileError(err)
		pkgErrors.LogError(h.logger, appErr, "Failed to reconcile subscription", zap.String("subscription_id", subscriptionID))
		return pkgErrors.ToHTTPError(appErr)
	}

	return c.JSON(http.StatusOK, sub)
}

func reconcileError(err error) *pkgErrors.AppError {
	var pe *domainErrors.ProviderError
	switch {
	case errors.As(err, &pe) && pe.HTTPStatus == http.StatusNotFound:
		return pkgErrors.NewAppError(pkgErrors.ErrNotFound, "Subscription not found at provider", err)
	case errors.As(err, &pe) && pe.Class == domainErrors.ClassTransient:
		return pkgErrors.NewAppError(pkgErrors.ErrUnavailable, "Provider unavailable", err)
	case errors.Is(err, domainErrors.ErrCustomerLinkMissing):
		return pkgErrors.NewAppError(pkgErrors.ErrInvalidArgument, "Subscription cannot be attributed to a user", err)
	default:
		return pkgErrors.NewAppError(pkgErrors.ErrInternal, "Reconcile failed", err)
	}
}

func (h *AdminHandler) logOperator(c echo.Context, msg string, fields ...zap.Field) {
	if op, err := auth.GetOperator(c); err == nil {
		fields = append(fields, zap.String("operator", op.Subject), zap.String("role", op.Role))
	}
	h.logger.Info(msg, fields...)
}
