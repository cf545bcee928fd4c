package messaging

import (
	"context"
	"encoding/json"
	"time"

	"jobspider/internal/config"
	"jobspider/internal/errors"
	"jobspider/internal/models"
	"jobspider/internal/telemetry"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("jobspider/messaging")

const (
	// PostingsSubject carries every posting a spider run scrapes.
	PostingsSubject = "jobs.scraped"
)

type Publisher interface {
	PublishPosting(ctx context.Context, posting *models.JobPosting) error
	Close()
}

type natsPublisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewPublisher(logger *zap.Logger, config *config.Config) (Publisher, error) {
	opts := []nats.Option{
		nats.Timeout(config.NATSConnTimeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	}

	conn, err := nats.Connect(config.NATSURL, opts...)
	if err != nil {
		return nil, errors.Unavailable("connecting to NATS", err)
	}

	return &natsPublisher{
		conn:   conn,
		logger: logger,
	}, nil
}

func (p *natsPublisher) PublishPosting(ctx context.Context, posting *models.JobPosting) error {
	_, span := tracer.Start(ctx, "PublishPosting")
	defer span.End()

	data, err := json.Marshal(posting)
	if err != nil {
		span.RecordError(err)
		return errors.Internal("marshaling job posting", err)
	}

	span.SetAttributes(
		telemetry.String("nats.subject", PostingsSubject),
		telemetry.Int("message.size", len(data)),
	)

	if err := p.conn.Publish(PostingsSubject, data); err != nil {
		span.RecordError(err)
		p.logger.Error("failed to publish job posting",
			zap.String("id", posting.ID),
			zap.Error(err))
		return errors.Internal("publishing to NATS", err)
	}

	p.logger.Debug("published job posting",
		zap.String("id", posting.ID),
		zap.String("subject", PostingsSubject))
	return nil
}

func (p *natsPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// NopPublisher drops every posting. Used when event publishing is disabled
// and the run only produces CSV output.
type NopPublisher struct{}

func (NopPublisher) PublishPosting(context.Context, *models.JobPosting) error { return nil }

func (NopPublisher) Close() {}
