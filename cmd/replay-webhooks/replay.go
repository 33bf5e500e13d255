package main

import (
	"context"
	"time"

	"github.com/hudsor01/tenant-flow-sub011/internal/domain/model"
	"github.com/hudsor01/tenant-flow-sub011/internal/usecase"
	"go.uber.org/zap"
)

type pendingLister interface {
	ListUnprocessed(ctx context.Context, receivedBefore time.Time, limit int) ([]*model.StripeWebhookEvent, error)
}

type replayer interface {
	Replay(ctx context.Context, eventID string) usecase.Result
}

type replaySummary struct {
	Found     int
	Processed int
	Skipped   int
	Failed    int
}

// replayPending re-runs every unprocessed event received before cutoff.
// Events another worker holds are counted as skipped.
func replayPending(ctx context.Context, events pendingLister, r replayer, cutoff time.Time, limit int, dryRun bool, logger *zap.Logger) (replaySummary, error) {
	var summary replaySummary

	pending, err := events.ListUnprocessed(ctx, cutoff, limit)
	if err != nil {
		return summary, err
	}
	summary.Found = len(pending)

	for _, event := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		fields := []zap.Field{
			zap.String("event_id", event.StripeEventID),
			zap.String("event_type", event.EventType),
			zap.Time("received_at", event.ReceivedAt),
			zap.Int("retry_count", event.RetryCount),
		}

		if dryRun {
			logger.Info("Would replay webhook event", fields...)
			summary.Skipped++
			continue
		}

		result := r.Replay(ctx, event.StripeEventID)
		switch result.Outcome {
		case usecase.OutcomeProcessed:
			summary.Processed++
			logger.Info("Webhook event replayed", fields...)
		case usecase.OutcomeInFlight, usecase.OutcomeDuplicate:
			summary.Skipped++
			logger.Info("Webhook event skipped", append(fields, zap.String("outcome", string(result.Outcome)))...)
		default:
			summary.Failed++
			logger.Warn("Webhook event replay failed", append(fields,
				zap.String("outcome", string(result.Outcome)),
				zap.Error(result.Err))...)
		}
	}

	return summary, nil
}
