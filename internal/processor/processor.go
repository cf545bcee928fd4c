package processor

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"jobspider/internal/errors"
	"jobspider/internal/models"
	"jobspider/internal/parser"
	"jobspider/internal/store"
	"jobspider/internal/telemetry"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Processor consumes scraped postings off the wire, normalizes them and
// writes them to the store.
type Processor struct {
	logger   *zap.Logger
	postings *store.Postings
	tracer   trace.Tracer
}

func NewProcessor(logger *zap.Logger, postings *store.Postings) *Processor {
	return &Processor{
		logger:   logger,
		postings: postings,
		tracer:   telemetry.GetTracer("jobspider/processor"),
	}
}

func (p *Processor) ProcessPosting(ctx context.Context, rawData []byte) error {
	ctx, span := p.tracer.Start(ctx, "ProcessPosting")
	defer span.End()

	var posting models.JobPosting
	if err := json.Unmarshal(rawData, &posting); err != nil {
		span.RecordError(err)
		return errors.InvalidInput("decoding job posting", err)
	}

	normalize(&posting)

	if posting.URL == "" {
		return errors.InvalidInput("job posting has no URL", nil)
	}

	if err := p.postings.Insert(ctx, &posting); err != nil {
		span.RecordError(err)
		p.logger.Error("failed to store job posting",
			zap.String("id", posting.ID),
			zap.Error(err))
		return err
	}

	return nil
}

func normalize(posting *models.JobPosting) {
	posting.Title = strings.TrimSpace(posting.Title)
	posting.Company = strings.TrimSpace(posting.Company)
	posting.Location = strings.TrimSpace(posting.Location)
	posting.Country = strings.TrimSpace(posting.Country)
	posting.Region = strings.TrimSpace(posting.Region)
	posting.Seniority = strings.TrimSpace(posting.Seniority)
	posting.JobFunction = strings.TrimSpace(posting.JobFunction)
	posting.Industries = strings.TrimSpace(posting.Industries)

	if posting.ID == "" && posting.URL != "" {
		posting.ID = parser.PostingID(posting.URL)
	}
	if posting.ScrapedAt.IsZero() {
		posting.ScrapedAt = time.Now()
	}
}
