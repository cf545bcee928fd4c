package spider

import (
	"context"
	"sync/atomic"

	"jobspider/internal/config"
	"jobspider/internal/dataset"
	"jobspider/internal/errors"
	"jobspider/internal/messaging"
	"jobspider/internal/parser"
	"jobspider/internal/telemetry"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("jobspider/spider")

const (
	// ModeSearch paginates each target through the search API before
	// collecting job links; ModeList reads job links straight off the
	// target page.
	ModeSearch = "search"
	ModeList   = "list"
)

// Fetcher retrieves the HTML body of a URL.
type Fetcher interface {
	Page(ctx context.Context, url string) (string, error)
}

// Stats counts what one spider run got through. Updated atomically by the
// worker pools.
type Stats struct {
	PagesFetched    int32
	PostingsParsed  int32
	PostingsWritten int32
	Failures        int32
}

type pageTask struct {
	url       string
	searchURL string
}

type detailTask struct {
	url       string
	searchURL string
}

type Spider struct {
	fetcher   Fetcher
	publisher messaging.Publisher
	writer    *dataset.Writer
	logger    *zap.Logger
	config    *config.Config
	workers   *workerManager
}

func New(fetcher Fetcher, publisher messaging.Publisher, writer *dataset.Writer, logger *zap.Logger, config *config.Config) *Spider {
	s := &Spider{
		fetcher:   fetcher,
		publisher: publisher,
		writer:    writer,
		logger:    logger,
		config:    config,
	}
	s.workers = newWorkerManager(s, logger)
	return s
}

// Run crawls every target in the given mode and blocks until all postings
// have been written or the context is cancelled.
func (s *Spider) Run(ctx context.Context, mode string, targetURLs []string) (*Stats, error) {
	ctx, span := tracer.Start(ctx, "Spider.Run")
	defer span.End()

	if mode != ModeSearch && mode != ModeList {
		return nil, errors.InvalidInput("unknown spider mode: "+mode, nil)
	}

	span.SetAttributes(
		telemetry.String("spider.mode", mode),
		telemetry.Int("spider.targets", len(targetURLs)),
	)
	s.logger.Info("starting spider run",
		zap.String("mode", mode),
		zap.Int("targets", len(targetURLs)))

	stats := &Stats{}
	pageChan := make(chan pageTask)
	detailChan := make(chan detailTask)

	detailWG := s.workers.startDetailWorkers(ctx, stats, detailChan)
	pageWG := s.workers.startPageWorkers(ctx, stats, pageChan, detailChan)

	feedErr := make(chan error, 1)
	go func() {
		feedErr <- s.feedTargets(ctx, mode, targetURLs, pageChan, stats)
		close(pageChan)
	}()

	go func() {
		pageWG.Wait()
		close(detailChan)
	}()

	detailWG.Wait()
	err := <-feedErr

	span.SetAttributes(
		telemetry.Int("spider.pages_fetched", int(atomic.LoadInt32(&stats.PagesFetched))),
		telemetry.Int("spider.postings_written", int(atomic.LoadInt32(&stats.PostingsWritten))),
	)
	s.logger.Info("spider run finished",
		zap.Int32("pages_fetched", atomic.LoadInt32(&stats.PagesFetched)),
		zap.Int32("postings_parsed", atomic.LoadInt32(&stats.PostingsParsed)),
		zap.Int32("postings_written", atomic.LoadInt32(&stats.PostingsWritten)),
		zap.Int32("failures", atomic.LoadInt32(&stats.Failures)))

	if err != nil {
		span.RecordError(err)
		return stats, err
	}
	return stats, nil
}

func (s *Spider) feedTargets(ctx context.Context, mode string, targetURLs []string, pageChan chan<- pageTask, stats *Stats) error {
	for _, target := range targetURLs {
		var err error
		if mode == ModeSearch {
			err = s.feedSearchTarget(ctx, target, pageChan, stats)
		} else {
			err = send(ctx, pageChan, pageTask{url: target, searchURL: target})
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			atomic.AddInt32(&stats.Failures, 1)
			s.logger.Error("failed to expand target",
				zap.String("target", target),
				zap.Error(err))
		}
	}
	return nil
}

// feedSearchTarget reads the result count off the target's first page and
// queues one page task per 25 results. Blurred (logged-out) results only
// show the first page, so the count is clamped.
func (s *Spider) feedSearchTarget(ctx context.Context, target string, pageChan chan<- pageTask, stats *Stats) error {
	body, err := s.fetcher.Page(ctx, target)
	if err != nil {
		return err
	}
	atomic.AddInt32(&stats.PagesFetched, 1)

	doc, err := parser.NewDocument(body)
	if err != nil {
		return err
	}

	count, err := parser.JobCount(doc)
	if err != nil {
		s.logger.Info("no job count in search results",
			zap.String("target", target))
		return nil
	}

	if parser.HasBlurredContent(doc) {
		s.logger.Warn("blurred content detected, limiting to one page",
			zap.String("target", target))
		count = 1
	}

	s.logger.Info("expanding search target",
		zap.String("target", target),
		zap.Int("job_count", count))

	pageURLs, err := parser.PaginatedURLs(target, count)
	if err != nil {
		return err
	}

	for _, pageURL := range pageURLs {
		if err := send(ctx, pageChan, pageTask{url: pageURL, searchURL: target}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Spider) processPage(ctx context.Context, task pageTask, detailChan chan<- detailTask, stats *Stats) error {
	body, err := s.fetcher.Page(ctx, task.url)
	if err != nil {
		return err
	}
	atomic.AddInt32(&stats.PagesFetched, 1)

	doc, err := parser.NewDocument(body)
	if err != nil {
		return err
	}

	links := parser.JobLinks(doc)
	s.logger.Debug("found job links",
		zap.String("page", task.url),
		zap.Int("count", len(links)))

	for _, link := range links {
		if err := send(ctx, detailChan, detailTask{url: link, searchURL: task.searchURL}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Spider) processDetail(ctx context.Context, task detailTask, stats *Stats) error {
	body, err := s.fetcher.Page(ctx, task.url)
	if err != nil {
		return err
	}
	atomic.AddInt32(&stats.PagesFetched, 1)

	doc, err := parser.NewDocument(body)
	if err != nil {
		return err
	}

	posting, err := parser.ParseJobDetail(doc, task.url, task.searchURL)
	if err != nil {
		s.invalidatePage(ctx, task.url)
		return err
	}
	atomic.AddInt32(&stats.PostingsParsed, 1)

	if err := s.writer.Append(posting); err != nil {
		return err
	}
	atomic.AddInt32(&stats.PostingsWritten, 1)

	if err := s.publisher.PublishPosting(ctx, posting); err != nil {
		s.logger.Warn("failed to publish posting",
			zap.String("id", posting.ID),
			zap.Error(err))
	}

	return nil
}

type pageInvalidator interface {
	Invalidate(ctx context.Context, url string) error
}

// invalidatePage drops the cached copy of a page whose body produced no
// posting, so the next run refetches it instead of replaying the bad copy.
func (s *Spider) invalidatePage(ctx context.Context, url string) {
	inv, ok := s.fetcher.(pageInvalidator)
	if !ok {
		return
	}
	if err := inv.Invalidate(ctx, url); err != nil {
		s.logger.Warn("failed to invalidate cached page",
			zap.String("url", url),
			zap.Error(err))
	}
}

func send[T any](ctx context.Context, ch chan<- T, task T) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ch <- task:
		return nil
	}
}
