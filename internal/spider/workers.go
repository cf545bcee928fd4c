package spider

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type workerManager struct {
	spider *Spider
	logger *zap.Logger
}

func newWorkerManager(spider *Spider, logger *zap.Logger) *workerManager {
	return &workerManager{
		spider: spider,
		logger: logger,
	}
}

func (w *workerManager) startPageWorkers(ctx context.Context, stats *Stats, pageChan <-chan pageTask, detailChan chan<- detailTask) *sync.WaitGroup {
	var wg sync.WaitGroup

	for i := 0; i < w.spider.config.PageWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range pageChan {
				if err := w.spider.processPage(ctx, task, detailChan, stats); err != nil {
					if ctx.Err() != nil {
						return
					}
					atomic.AddInt32(&stats.Failures, 1)
					w.logger.Error("failed to process results page",
						zap.String("url", task.url),
						zap.Error(err))
				}
			}
		}()
	}

	return &wg
}

func (w *workerManager) startDetailWorkers(ctx context.Context, stats *Stats, detailChan <-chan detailTask) *sync.WaitGroup {
	var wg sync.WaitGroup

	for i := 0; i < w.spider.config.DetailWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range detailChan {
				if err := w.spider.processDetail(ctx, task, stats); err != nil {
					if ctx.Err() != nil {
						return
					}
					atomic.AddInt32(&stats.Failures, 1)
					w.logger.Error("failed to process job detail",
						zap.String("url", task.url),
						zap.Error(err))
					continue
				}
			}
		}()
	}

	return &wg
}
