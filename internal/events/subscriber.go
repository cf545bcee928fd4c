package events

import (
	"context"
	"fmt"

	"jobspider/internal/messaging"
	"jobspider/internal/processor"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const queueGroup = "posting-processor"

type Handler struct {
	logger    *zap.Logger
	nc        *nats.Conn
	tracer    trace.Tracer
	processor *processor.Processor
	sub       *nats.Subscription
}

func NewHandler(logger *zap.Logger, nc *nats.Conn, tracer trace.Tracer, proc *processor.Processor) *Handler {
	return &Handler{
		logger:    logger,
		nc:        nc,
		tracer:    tracer,
		processor: proc,
	}
}

func (h *Handler) RegisterSubscriptions(lc fx.Lifecycle) error {
	sub, err := h.nc.QueueSubscribe(messaging.PostingsSubject, queueGroup, h.handlePosting)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", messaging.PostingsSubject, err)
	}

	h.sub = sub
	h.logger.Info("Registered NATS subscriptions")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return h.sub.Unsubscribe()
		},
	})

	return nil
}

func (h *Handler) handlePosting(msg *nats.Msg) {
	ctx, span := h.tracer.Start(context.Background(), "handlePosting")
	defer span.End()

	if err := h.processor.ProcessPosting(ctx, msg.Data); err != nil {
		h.logger.Error("Failed to process job posting",
			zap.Error(err),
			zap.String("subject", msg.Subject),
		)
		return
	}

	h.logger.Debug("Processed job posting",
		zap.String("subject", msg.Subject),
	)
}
