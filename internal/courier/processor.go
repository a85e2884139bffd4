package courier

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/tasks"
)

// StatusProcessor applies queued webhook events to consignments.
type StatusProcessor struct {
	Svc    *Service
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (p StatusProcessor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	event, err := tasks.ParseCourierStatus(t)
	if err != nil {
		return err
	}
	logger := p.Logger.With().
		Str("provider", event.ProviderCode).
		Str("tracking_code", event.TrackingCode).
		Logger()

	consignment, err := p.Svc.ApplyStatus(ctx, event.ProviderID, event.TrackingCode, event.Status, event.Raw)
	if err != nil {
		if common.KindOf(err) == common.KindNotFound {
			logger.Warn().Msg("courier_status_unknown_consignment")
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		logger.Error().Err(err).Msg("courier_status_apply_failed")
		return err
	}
	logger.Info().
		Str("consignment_id", consignment.ID).
		Str("status", string(consignment.Status)).
		Msg("courier_status_applied")
	return nil
}
