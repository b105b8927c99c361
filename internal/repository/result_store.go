package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
	domainrepo "github.com/garen0616/sp500-hit-tester-stable/internal/domain/repository"
	pkgch "github.com/garen0616/sp500-hit-tester-stable/pkg/clickhouse"
	applogger "github.com/garen0616/sp500-hit-tester-stable/pkg/logger"
)

var resultSchema = []string{
	`CREATE TABLE IF NOT EXISTS backtest_details (
		run_id       String,
		ticker       String,
		date         String,
		next_date    String,
		rating       String,
		target_price Nullable(Float64),
		p0           Nullable(Float64),
		p1           Nullable(Float64),
		hit          String,
		created_at   DateTime DEFAULT now()
	) ENGINE = MergeTree()
	ORDER BY (run_id, ticker, date)`,

	`CREATE TABLE IF NOT EXISTS backtest_banded (
		run_id          String,
		ticker          String,
		baseline_date   String,
		next_date       String,
		rating          String,
		target          Nullable(Float64),
		actual          Nullable(Float64),
		actual_date     String,
		delta           Nullable(Float64),
		baseline_price  Nullable(Float64),
		month_high      Nullable(Float64),
		month_low       Nullable(Float64),
		range_mid       Nullable(Float64),
		close_hit       Nullable(UInt8),
		range_mid_hit   Nullable(UInt8),
		intramonth_hit  Nullable(UInt8),
		hold_accuracy   Nullable(UInt8),
		hold_band_pct   Nullable(Float64),
		hold_drift_flag UInt8,
		created_at      DateTime DEFAULT now()
	) ENGINE = MergeTree()
	ORDER BY (run_id, ticker, baseline_date)`,
}

// CHResultStore persists evaluation rows to ClickHouse with multi-row
// inserts.
type CHResultStore struct {
	client *pkgch.Client
	log    *applogger.Logger
}

// NewCHResultStore creates the store and ensures its tables exist.
func NewCHResultStore(client *pkgch.Client, log *applogger.Logger) (*CHResultStore, error) {
	s := &CHResultStore{client: client, log: log}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, resultSchema); err != nil {
		return nil, err
	}
	return s, nil
}

var _ domainrepo.ResultStore = (*CHResultStore)(nil)

// SaveDetails inserts directional detail rows for one run.
func (s *CHResultStore) SaveDetails(ctx context.Context, runID string, rows []models.DetailRow) error {
	if len(rows) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*9)
	for _, r := range rows {
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			runID, r.Ticker, r.Date, r.NextDate, string(r.Rating),
			r.TargetPrice, r.P0, r.P1, r.Hit,
		)
	}

	query := fmt.Sprintf(
		`INSERT INTO backtest_details
			(run_id, ticker, date, next_date, rating, target_price, p0, p1, hit)
		VALUES %s`,
		strings.Join(placeholders, ", "),
	)

	if _, err := s.client.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert details: %w", err)
	}
	if s.log != nil {
		s.log.Debug("detail rows saved", applogger.String("run", runID), applogger.Int("rows", len(rows)))
	}
	return nil
}

// SaveBanded inserts banded evaluation rows for one run.
func (s *CHResultStore) SaveBanded(ctx context.Context, runID string, rows []models.BandedRow) error {
	if len(rows) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*19)
	for _, r := range rows {
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			runID, r.Ticker, r.BaselineDate, r.NextDate, r.Rating,
			r.Target, r.Actual, r.ActualDate, r.Delta, r.BaselinePrice,
			r.MonthHigh, r.MonthLow, r.RangeMid,
			boolFlag(r.CloseHit), boolFlag(r.RangeMidHit), boolFlag(r.IntramonthHit), boolFlag(r.HoldAccuracy),
			r.HoldBandPct, boolToUint8(r.HoldDriftFlag),
		)
	}

	query := fmt.Sprintf(
		`INSERT INTO backtest_banded
			(run_id, ticker, baseline_date, next_date, rating, target, actual,
			 actual_date, delta, baseline_price, month_high, month_low, range_mid,
			 close_hit, range_mid_hit, intramonth_hit, hold_accuracy,
			 hold_band_pct, hold_drift_flag)
		VALUES %s`,
		strings.Join(placeholders, ", "),
	)

	if _, err := s.client.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert banded: %w", err)
	}
	if s.log != nil {
		s.log.Debug("banded rows saved", applogger.String("run", runID), applogger.Int("rows", len(rows)))
	}
	return nil
}

// Health checks the underlying connection.
func (s *CHResultStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close closes the connection pool.
func (s *CHResultStore) Close() error {
	return s.client.Close()
}

func boolFlag(v *bool) *uint8 {
	if v == nil {
		return nil
	}
	u := boolToUint8(*v)
	return &u
}

func boolToUint8(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

// NoopResultStore is used when result persistence is disabled.
type NoopResultStore struct{}

func (NoopResultStore) SaveDetails(context.Context, string, []models.DetailRow) error { return nil }
func (NoopResultStore) SaveBanded(context.Context, string, []models.BandedRow) error  { return nil }
func (NoopResultStore) Health(context.Context) error                                  { return nil }
func (NoopResultStore) Close() error                                                  { return nil }
