package di

import (
	"fmt"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/repository"
	"github.com/garen0616/sp500-hit-tester-stable/internal/handler/api"
	internalrepo "github.com/garen0616/sp500-hit-tester-stable/internal/repository"
	"github.com/garen0616/sp500-hit-tester-stable/internal/service/fmp"
	"github.com/garen0616/sp500-hit-tester-stable/internal/service/oracle"
	"github.com/garen0616/sp500-hit-tester-stable/internal/usecase"
	"github.com/garen0616/sp500-hit-tester-stable/pkg/cache"
	pkgch "github.com/garen0616/sp500-hit-tester-stable/pkg/clickhouse"
	"github.com/garen0616/sp500-hit-tester-stable/pkg/config"
	xhttp "github.com/garen0616/sp500-hit-tester-stable/pkg/http"
	pkgkafka "github.com/garen0616/sp500-hit-tester-stable/pkg/kafka"
	applogger "github.com/garen0616/sp500-hit-tester-stable/pkg/logger"
	"github.com/garen0616/sp500-hit-tester-stable/pkg/metrics"
	"github.com/garen0616/sp500-hit-tester-stable/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideMarketData creates the FMP market data client.
func ProvideMarketData(cfg *config.Config, m repository.Metrics, log *applogger.Logger) repository.MarketData {
	return fmp.NewClient(cfg.FMP.BaseURL, cfg.FMP.APIKey,
		fmp.WithTimeout(cfg.FMP.Timeout),
		fmp.WithRetry(cfg.FMP.RetryMax, cfg.FMP.RetryDelay),
		fmp.WithMetrics(m),
		fmp.WithLogger(log),
	)
}

// ProvideOracle creates the analyzer client.
func ProvideOracle(cfg *config.Config) repository.DecisionOracle {
	return oracle.NewClient(cfg.Oracle.BaseURL, oracle.WithTimeout(cfg.Oracle.Timeout))
}

// ProvideDecisionCache creates the cache backend behind the decision
// provider. The memory backend never fails.
func ProvideDecisionCache(cfg *config.Config) (cache.Service, error) {
	switch cfg.DecisionCache.Backend {
	case "redis":
		c, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.DecisionCache.Redis.Host),
			cache.WithRedisPort(cfg.DecisionCache.Redis.Port),
			cache.WithRedisPassword(cfg.DecisionCache.Redis.Password),
			cache.WithRedisDB(cfg.DecisionCache.Redis.DB),
			cache.WithRedisPrefix(cfg.DecisionCache.Redis.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("decision cache: %w", err)
		}
		return c, nil
	default:
		return cache.NewMemoryCache(), nil
	}
}

// ProvideDecisionProvider creates the memoizing decision provider.
func ProvideDecisionProvider(
	o repository.DecisionOracle,
	store cache.Service,
	m repository.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *usecase.DecisionProvider {
	return usecase.NewDecisionProvider(o,
		usecase.WithDecisionCache(store, cfg.DecisionCache.TTL),
		usecase.WithDecisionMetrics(m),
		usecase.WithDecisionLogger(log),
	)
}

// ProvideResultStore creates the result store, or a noop when persistence
// is disabled.
func ProvideResultStore(cfg *config.Config, log *applogger.Logger) (repository.ResultStore, error) {
	if !cfg.Results.Enabled {
		return internalrepo.NoopResultStore{}, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.Results.ClickHouse.Host),
		pkgch.WithPort(cfg.Results.ClickHouse.Port),
		pkgch.WithDatabase(cfg.Results.ClickHouse.Database),
		pkgch.WithCredentials(cfg.Results.ClickHouse.User, cfg.Results.ClickHouse.Password),
		pkgch.WithTimeouts(cfg.Results.ClickHouse.DialTimeout, cfg.Results.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	store, err := internalrepo.NewCHResultStore(client, log)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("result store: %w", err)
	}
	return store, nil
}

// ProvideRunEvents creates the run event publisher, or a noop when events
// are disabled.
func ProvideRunEvents(cfg *config.Config) (repository.RunEvents, error) {
	if !cfg.Events.Enabled {
		return internalrepo.NoopRunEvents{}, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Events.Brokers),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaRunEvents(producer, cfg.Events.Topic), nil
}

// ProvideProgressHub creates the progress broadcast hub.
func ProvideProgressHub() *usecase.ProgressHub {
	return usecase.NewProgressHub()
}

// ProvideEngine assembles the backtest engine.
func ProvideEngine(
	cfg *config.Config,
	market repository.MarketData,
	decisions *usecase.DecisionProvider,
	hub *usecase.ProgressHub,
	store repository.ResultStore,
	events repository.RunEvents,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Engine {
	control := usecase.NewController()
	selector := usecase.NewSelector(market, cfg.FMP.RankWorkers, cfg.FMP.McapChunkSize, log)
	fetcher := usecase.NewPriceFetcher(market, cfg.FMP.PriceWorkers, log)

	return usecase.NewEngine(control, selector, fetcher, decisions, hub,
		usecase.WithResultStore(store),
		usecase.WithRunEvents(events),
		usecase.WithEngineMetrics(m),
		usecase.WithEngineLogger(log),
		usecase.WithBandedParams(usecase.BandedParams{
			DefaultBandPct:  cfg.Backtest.DefaultBandPct,
			SmallCapBandPct: cfg.Backtest.SmallCapBandPct,
			DriftPct:        cfg.Backtest.DriftPct,
			Pacing:          cfg.Backtest.Pacing,
		}),
	)
}

// ProvideHandler creates the HTTP handler surface.
func ProvideHandler(
	log *applogger.Logger,
	engine *usecase.Engine,
	market repository.MarketData,
	hub *usecase.ProgressHub,
) xhttp.Handler {
	return api.NewBacktestHandler(log, engine, market, hub)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	store repository.ResultStore,
	events repository.RunEvents,
	decisionCache cache.Service,
) *server.App {
	return server.New(cfg, log, handler, store, events, decisionCache)
}
