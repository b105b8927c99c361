package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
)

var bandedCSVHeader = []string{
	"ticker", "baselineDate", "nextDate", "rating", "target", "actual",
	"actualDate", "delta", "baselinePrice", "monthHigh", "monthLow",
	"rangeMid", "closeHit", "rangeMidHit", "intramonthHit", "holdAccuracy",
	"holdBandPct", "holdDriftFlag",
}

// writeBandedCSV streams banded rows as a CSV attachment.
func writeBandedCSV(c echo.Context, result *models.BandedResult) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="banded-%s.csv"`, result.RunID))
	res.WriteHeader(http.StatusOK)

	w := csv.NewWriter(res)
	if err := w.Write(bandedCSVHeader); err != nil {
		return err
	}

	for _, r := range result.Rows {
		record := []string{
			r.Ticker,
			r.BaselineDate,
			r.NextDate,
			r.Rating,
			csvFloat(r.Target),
			csvFloat(r.Actual),
			r.ActualDate,
			csvFloat(r.Delta),
			csvFloat(r.BaselinePrice),
			csvFloat(r.MonthHigh),
			csvFloat(r.MonthLow),
			csvFloat(r.RangeMid),
			csvBool(r.CloseHit),
			csvBool(r.RangeMidHit),
			csvBool(r.IntramonthHit),
			csvBool(r.HoldAccuracy),
			csvFloat(r.HoldBandPct),
			strconv.FormatBool(r.HoldDriftFlag),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func csvFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func csvBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}
