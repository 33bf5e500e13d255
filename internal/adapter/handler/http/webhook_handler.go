package http

import (
	"context"
	"errors"
	"net/http"

	domainErrors "github.com/hudsor01/tenant-flow-sub011/internal/domain/errors"
	"github.com/hudsor01/tenant-flow-sub011/internal/middleware/rawbody"
	"github.com/hudsor01/tenant-flow-sub011/internal/usecase"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// WebhookProcessor is the part of the usecase layer the webhook endpoint needs
type WebhookProcessor interface {
	Process(ctx context.Context, payload []byte, signatureHeader string) usecase.Result
}

// WebhookHandler receives provider event deliveries
type WebhookHandler struct {
	processor       WebhookProcessor
	signatureHeader string
	maxBodyBytes    int64
	logger          *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler instance
func NewWebhookHandler(processor WebhookProcessor, signatureHeader string, maxBodyBytes int64, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor:       processor,
		signatureHeader: signatureHeader,
		maxBodyBytes:    maxBodyBytes,
		logger:          logger,
	}
}

// Handle processes one delivery. The status code is what tells the provider
// whether to redeliver, so only processed and duplicate events get a 2xx.
func (h *WebhookHandler) Handle(c echo.Context) error {
	payload, ok := rawbody.FromContext(c)
	if !ok {
		body, err := rawbody.Read(c.Request().Body, h.maxBodyBytes)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, rawbody.ErrTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			h.logger.Warn("Failed to read webhook body", zap.Error(err))
			return c.JSON(status, echo.Map{
				"error": "Failed to read request body",
				"code":  "BODY_READ_FAILED",
			})
		}
		payload = body
	}

	signature := c.Request().Header.Get(h.signatureHeader)
	result := h.processor.Process(c.Request().Context(), payload, signature)
	status := result.Outcome.HTTPStatus()

	if status == http.StatusOK {
		return c.JSON(http.StatusOK, echo.Map{
			"received":  true,
			"event_id":  result.EventID,
			"duplicate": result.Outcome == usecase.OutcomeDuplicate,
		})
	}

	body := echo.Map{"event_id": result.EventID}
	switch result.Outcome {
	case usecase.OutcomeAuthFailure:
		body["error"] = "Webhook signature verification failed"
		body["code"] = "INVALID_SIGNATURE"
		var sigErr *domainErrors.SignatureError
		if errors.As(result.Err, &sigErr) {
			body["reason"] = string(sigErr.Reason)
		}
	case usecase.OutcomeBadRequest:
		body["error"] = "Webhook payload could not be parsed"
		body["code"] = "INVALID_PAYLOAD"
	case usecase.OutcomeInFlight:
		body["error"] = "Event is already being processed"
		body["code"] = "EVENT_IN_FLIGHT"
	default:
		body["error"] = "Webhook processing failed"
		body["code"] = "PROCESSING_FAILED"
	}

	h.logger.Warn("Webhook delivery not acknowledged",
		zap.String("event_id", result.EventID),
		zap.String("event_type", result.EventType),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("status", status),
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))

	return c.JSON(status, body)
}
