package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/repository"
	applogger "github.com/garen0616/sp500-hit-tester-stable/pkg/logger"
	"github.com/garen0616/sp500-hit-tester-stable/pkg/util"
)

// ErrBadSelector marks selector parameter problems the caller should report
// as a validation failure.
var ErrBadSelector = errors.New("invalid selector")

// Selector resolves a SelectorSpec into the list of tickers a run operates
// on. Ranking strategies share the price fetcher's worker-pool shape.
type Selector struct {
	market    repository.MarketData
	workers   int
	chunkSize int
	log       *applogger.Logger
}

// NewSelector creates a universe selector. workers sizes the ranking pool,
// chunkSize bounds capitalization batch requests.
func NewSelector(market repository.MarketData, workers, chunkSize int, log *applogger.Logger) *Selector {
	if workers <= 0 {
		workers = 10
	}
	if chunkSize <= 0 {
		chunkSize = 150
	}
	return &Selector{market: market, workers: workers, chunkSize: chunkSize, log: log}
}

// Select resolves the spec to a chosen universe. TopN is clamped to [1, 500].
func (s *Selector) Select(ctx context.Context, run *models.RunContext, spec models.SelectorSpec) ([]string, error) {
	topN := spec.TopN
	if topN < 1 {
		topN = 1
	}
	if topN > 500 {
		topN = 500
	}

	switch spec.Type {
	case "manual":
		return parseTickerList(spec.Tickers)
	case "return":
		return s.selectByReturn(ctx, run, spec, topN)
	case "mcap_latest":
		return s.selectByLatestCap(ctx, run, spec, topN)
	case "mcap_asof":
		return s.selectByCapAsOf(ctx, run, spec, topN)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrBadSelector, spec.Type)
	}
}

// parseTickerList splits a comma/whitespace separated list and uppercases it.
// Duplicates pass through; downstream aggregation collapses them.
func parseTickerList(raw string) ([]string, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.ToUpper(strings.TrimSpace(f))
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: tickers list is empty", ErrBadSelector)
	}
	return out, nil
}

// universe returns constituent symbols, optionally narrowed to sectors.
func (s *Selector) universe(ctx context.Context, sectors []string) ([]string, error) {
	rows, err := s.market.Constituents(ctx)
	if err != nil {
		return nil, err
	}

	var want map[string]struct{}
	if len(sectors) > 0 {
		want = make(map[string]struct{}, len(sectors))
		for _, sec := range sectors {
			want[strings.ToLower(strings.TrimSpace(sec))] = struct{}{}
		}
	}

	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if want != nil {
			if _, ok := want[strings.ToLower(r.Sector)]; !ok {
				continue
			}
		}
		out = append(out, r.Symbol)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no constituents match the sector filter", ErrBadSelector)
	}
	return out, nil
}

type ranked struct {
	ticker string
	score  float64
}

// selectByReturn ranks the universe by close-to-close return over [from, to]
// and keeps the top N.
func (s *Selector) selectByReturn(ctx context.Context, run *models.RunContext, spec models.SelectorSpec, topN int) ([]string, error) {
	from, ok := util.ParseDay(spec.From)
	if !ok {
		return nil, fmt.Errorf("%w: selector.from must be a YYYY-MM-DD date", ErrBadSelector)
	}
	to, ok := util.ParseDay(spec.To)
	if !ok {
		return nil, fmt.Errorf("%w: selector.to must be a YYYY-MM-DD date", ErrBadSelector)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: selector.from must precede selector.to", ErrBadSelector)
	}

	symbols, err := s.universe(ctx, spec.Sectors)
	if err != nil {
		return nil, err
	}

	scores, err := s.rank(run, symbols, func(ticker string) (float64, bool) {
		series, err := s.market.DailyHistoryRange(ctx, ticker, from, to)
		if err != nil || len(series) < 2 {
			return 0, false
		}
		first, last := series[0].Close, series[len(series)-1].Close
		if first == 0 {
			return 0, false
		}
		return (last - first) / first, true
	})
	if err != nil {
		return nil, err
	}

	return topTickers(scores, topN), nil
}

// selectByLatestCap ranks by latest market capitalization, fetched in
// batches.
func (s *Selector) selectByLatestCap(ctx context.Context, run *models.RunContext, spec models.SelectorSpec, topN int) ([]string, error) {
	symbols, err := s.universe(ctx, spec.Sectors)
	if err != nil {
		return nil, err
	}

	scores := make([]ranked, 0, len(symbols))
	for start := 0; start < len(symbols); start += s.chunkSize {
		if err := run.Err(); err != nil {
			return nil, err
		}
		end := start + s.chunkSize
		if end > len(symbols) {
			end = len(symbols)
		}

		rows, err := s.market.MarketCapBatch(ctx, symbols[start:end])
		if err != nil {
			return nil, fmt.Errorf("rank by market cap: %w", err)
		}
		for _, r := range rows {
			if r.Cap > 0 {
				scores = append(scores, ranked{ticker: r.Symbol, score: r.Cap})
			}
		}
	}

	return topTickers(scores, topN), nil
}

// selectByCapAsOf ranks by the capitalization observed on or before the
// as-of date, one history lookup per symbol.
func (s *Selector) selectByCapAsOf(ctx context.Context, run *models.RunContext, spec models.SelectorSpec, topN int) ([]string, error) {
	asOf, ok := util.ParseDay(spec.AsOf)
	if !ok {
		return nil, fmt.Errorf("%w: selector.asOf must be a YYYY-MM-DD date", ErrBadSelector)
	}

	symbols, err := s.universe(ctx, spec.Sectors)
	if err != nil {
		return nil, err
	}

	scores, err := s.rank(run, symbols, func(ticker string) (float64, bool) {
		rows, err := s.market.MarketCapHistory(ctx, ticker)
		if err != nil {
			return 0, false
		}
		best := 0.0
		var bestDate time.Time
		for _, r := range rows {
			if r.Date.After(asOf) {
				continue
			}
			if bestDate.IsZero() || r.Date.After(bestDate) {
				best, bestDate = r.Cap, r.Date
			}
		}
		if bestDate.IsZero() || best <= 0 {
			return 0, false
		}
		return best, true
	})
	if err != nil {
		return nil, err
	}

	return topTickers(scores, topN), nil
}

// rank scores symbols with a shared-index worker pool. Symbols whose scorer
// reports no usable value drop out of the ranking.
func (s *Selector) rank(run *models.RunContext, symbols []string, score func(ticker string) (float64, bool)) ([]ranked, error) {
	var (
		mu   sync.Mutex
		next atomic.Int64
		wg   sync.WaitGroup
	)
	scores := make([]ranked, 0, len(symbols))

	workers := s.workers
	if workers > len(symbols) {
		workers = len(symbols)
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
				if i >= len(symbols) {
					return
				}

				v, ok := score(symbols[i])
				if !ok {
					continue
				}
				mu.Lock()
				scores = append(scores, ranked{ticker: symbols[i], score: v})
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := run.Err(); err != nil {
		return nil, err
	}
	return scores, nil
}

// topTickers sorts descending by score and keeps the first n.
func topTickers(scores []ranked, n int) []string {
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if len(scores) > n {
		scores = scores[:n]
	}
	out := make([]string, len(scores))
	for i, r := range scores {
		out[i] = r.ticker
	}
	return out
}
