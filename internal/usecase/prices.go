package usecase

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/repository"
	applogger "github.com/garen0616/sp500-hit-tester-stable/pkg/logger"
)

// PriceStore holds one run's fetched histories. Built once by FetchAll and
// read-only afterwards.
type PriceStore struct {
	series map[string]models.PriceSeries
}

// Series returns the history for a ticker. A ticker whose fetch failed has
// an empty, non-nil series.
func (s *PriceStore) Series(ticker string) models.PriceSeries {
	return s.series[ticker]
}

// PriceFetcher pulls daily histories for a universe with a fixed-size worker
// pool sharing one atomic work index.
type PriceFetcher struct {
	market  repository.MarketData
	workers int
	log     *applogger.Logger
}

// NewPriceFetcher creates a fetcher with the given pool size.
func NewPriceFetcher(market repository.MarketData, workers int, log *applogger.Logger) *PriceFetcher {
	if workers <= 0 {
		workers = 8
	}
	return &PriceFetcher{market: market, workers: workers, log: log}
}

// FetchAll fetches every ticker's history concurrently. A per-ticker fetch
// failure degrades that ticker to an empty series rather than failing the
// run. Returns ErrRunCancelled when the run is flagged mid-fetch; already
// claimed tickers finish first.
func (f *PriceFetcher) FetchAll(ctx context.Context, run *models.RunContext, tickers []string, onDone func(completed int)) (*PriceStore, error) {
	store := &PriceStore{series: make(map[string]models.PriceSeries, len(tickers))}
	if len(tickers) == 0 {
		return store, nil
	}

	var (
		mu        sync.Mutex
		next      atomic.Int64
		completed atomic.Int64
		wg        sync.WaitGroup
	)

	workers := f.workers
	if workers > len(tickers) {
		workers = len(tickers)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if run.Cancelled() {
					return
				}
				i := int(next.Add(1)) - 1
				if i >= len(tickers) {
					return
				}

				ticker := tickers[i]
				series, err := f.market.DailyHistory(ctx, ticker)
				if err != nil {
					if f.log != nil {
						f.log.Warn("price fetch failed, using empty series",
							applogger.String("ticker", ticker),
							applogger.Error(err),
						)
					}
					series = models.PriceSeries{}
				}

				mu.Lock()
				store.series[ticker] = series
				mu.Unlock()

				n := int(completed.Add(1))
				if onDone != nil {
					onDone(n)
				}
			}
		}()
	}
	wg.Wait()

	if err := run.Err(); err != nil {
		return nil, err
	}
	return store, nil
}
