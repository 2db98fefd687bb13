package analysis

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"stock_etl_project/models"

	"github.com/shopspring/decimal"
)

func decimals(values ...float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(values))
	for i, v := range values {
		result[i] = decimal.NewFromFloat(v)
	}
	return result
}

func constantPrices(value float64, n int) []decimal.Decimal {
	result := make([]decimal.Decimal, n)
	for i := range result {
		result[i] = decimal.NewFromFloat(value)
	}
	return result
}

func barsFromCloses(closes []decimal.Decimal) []models.RawBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.RawBar, len(closes))
	for i, c := range closes {
		bars[i] = models.RawBar{
			StockID: 1,
			Date:    start.AddDate(0, 0, i),
			Open:    c,
			High:    c,
			Low:     c,
			Close:   c,
			Volume:  1000,
		}
	}
	return bars
}

func TestComputeSMAInsufficientHistory(t *testing.T) {
	for _, window := range []int{10, 50} {
		result := ComputeSMA(decimals(1, 2, 3, 4, 5), window)
		for i, v := range result {
			if v != nil {
				t.Fatalf("window %d: expected nil at index %d, got %s", window, i, v)
			}
		}
	}
}

func TestComputeSMAConstantSeries(t *testing.T) {
	result := ComputeSMA(constantPrices(100, 20), 10)
	for i := 0; i < 9; i++ {
		if result[i] != nil {
			t.Fatalf("expected nil at index %d, got %s", i, result[i])
		}
	}
	for i := 9; i < 20; i++ {
		if result[i] == nil {
			t.Fatalf("expected value at index %d", i)
		}
		if !result[i].Equal(decimal.NewFromInt(100)) {
			t.Fatalf("expected 100 at index %d, got %s", i, result[i])
		}
	}
}

func TestComputeSMAWorkedExample(t *testing.T) {
	closes := decimals(10, 11, 12, 11, 10, 9, 11, 13, 12, 12, 13, 14, 15, 14, 13)
	result := ComputeSMA(closes, 10)

	for i := 0; i < 9; i++ {
		if result[i] != nil {
			t.Fatalf("expected nil at index %d, got %s", i, result[i])
		}
	}

	// mean of the first 10 closes: 111 / 10
	if result[9] == nil || !result[9].Equal(decimal.NewFromFloat(11.1)) {
		t.Fatalf("expected 11.1 at index 9, got %v", result[9])
	}
	// mean of closes[1..10]: 114 / 10
	if result[10] == nil || !result[10].Equal(decimal.NewFromFloat(11.4)) {
		t.Fatalf("expected 11.4 at index 10, got %v", result[10])
	}
}

func TestComputeRSINullPrefix(t *testing.T) {
	result := ComputeRSI(constantPrices(100, 20), 14)
	for i := 0; i < 14; i++ {
		if result[i] != nil {
			t.Fatalf("expected nil at index %d, got %s", i, result[i])
		}
	}
	for i := 14; i < 20; i++ {
		if result[i] == nil {
			t.Fatalf("expected value at index %d", i)
		}
	}
}

func TestComputeRSIConstantSeriesIs100(t *testing.T) {
	result := ComputeRSI(constantPrices(100, 20), 14)
	for i := 14; i < 20; i++ {
		if !result[i].Equal(decimal.NewFromInt(100)) {
			t.Fatalf("expected RSI 100 at index %d, got %s", i, result[i])
		}
	}
}

func TestComputeRSIDecreasingSeriesIsZero(t *testing.T) {
	prices := make([]decimal.Decimal, 20)
	for i := range prices {
		prices[i] = decimal.NewFromInt(int64(100 - i))
	}
	result := ComputeRSI(prices, 14)
	for i := 14; i < 20; i++ {
		if result[i] == nil || !result[i].Equal(decimal.Zero) {
			t.Fatalf("expected RSI 0 at index %d, got %v", i, result[i])
		}
	}
}

func TestComputeRSIShortSeriesAllNull(t *testing.T) {
	result := ComputeRSI(decimals(10, 11, 12), 14)
	for i, v := range result {
		if v != nil {
			t.Fatalf("expected nil at index %d, got %s", i, v)
		}
	}
}

func TestComputeDailyReturns(t *testing.T) {
	result := ComputeDailyReturns(decimals(100, 110, 99))
	if result[0] != nil {
		t.Fatalf("expected nil first return, got %s", result[0])
	}
	if !result[1].Equal(decimal.NewFromFloat(0.1)) {
		t.Fatalf("expected 0.1, got %s", result[1])
	}
	if !result[2].Equal(decimal.NewFromFloat(-0.1)) {
		t.Fatalf("expected -0.1, got %s", result[2])
	}
}

func TestComputeDailyReturnsZeroPrevClose(t *testing.T) {
	result := ComputeDailyReturns(decimals(0, 10))
	if result[1] != nil {
		t.Fatalf("expected nil return after zero close, got %s", result[1])
	}
}

func TestComputeVolatilityConstantReturnsIsZero(t *testing.T) {
	// 40 closes growing by a constant amount would not give constant
	// returns, so feed constant returns directly.
	returns := make([]*decimal.Decimal, 40)
	r := decimal.NewFromFloat(0.01)
	for i := 1; i < len(returns); i++ {
		returns[i] = &r
	}

	result := ComputeVolatility(returns, 30)
	for i := 0; i < 30; i++ {
		if result[i] != nil {
			t.Fatalf("expected nil at index %d, got %s", i, result[i])
		}
	}
	for i := 30; i < 40; i++ {
		if result[i] == nil || !result[i].IsZero() {
			t.Fatalf("expected zero volatility at index %d, got %v", i, result[i])
		}
	}
}

func TestTransformEmptyInput(t *testing.T) {
	_, err := Transform(nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestTransformDuplicateDates(t *testing.T) {
	bars := barsFromCloses(decimals(10, 11, 12))
	bars[2].Date = bars[1].Date

	_, err := Transform(bars)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestTransformUnsortedInput(t *testing.T) {
	bars := barsFromCloses(decimals(10, 11, 12))
	bars[0], bars[2] = bars[2], bars[0]

	_, err := Transform(bars)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestTransformIdempotent(t *testing.T) {
	closes := decimals(10, 11, 12, 11, 10, 9, 11, 13, 12, 12, 13, 14, 15, 14, 13)
	bars := barsFromCloses(closes)

	first, err := Transform(bars)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	second, err := Transform(bars)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}

	firstJSON, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	secondJSON, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	if string(firstJSON) != string(secondJSON) {
		t.Fatalf("transform output differs between runs")
	}
}

func TestTransformWorkedExample(t *testing.T) {
	closes := decimals(10, 11, 12, 11, 10, 9, 11, 13, 12, 12, 13, 14, 15, 14, 13)
	features, err := Transform(barsFromCloses(closes))
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if len(features) != len(closes) {
		t.Fatalf("expected %d feature bars, got %d", len(closes), len(features))
	}

	for i := 0; i < 9; i++ {
		if features[i].SMA10 != nil {
			t.Fatalf("expected nil SMA10 at index %d", i)
		}
	}
	if features[9].SMA10 == nil || !features[9].SMA10.Equal(decimal.NewFromFloat(11.1)) {
		t.Fatalf("expected SMA10 11.1 at index 9, got %v", features[9].SMA10)
	}

	// only 50 and 30 windows stay unfilled over 15 bars
	for i := range features {
		if features[i].SMA50 != nil {
			t.Fatalf("expected nil SMA50 at index %d", i)
		}
		if features[i].Volatility30 != nil {
			t.Fatalf("expected nil Volatility30 at index %d", i)
		}
	}

	if features[14].RSI14 == nil {
		t.Fatalf("expected RSI14 at index 14")
	}
	if features[13].RSI14 != nil {
		t.Fatalf("expected nil RSI14 at index 13")
	}

	for i, bar := range features {
		if !bar.Close.Equal(closes[i]) {
			t.Fatalf("close mismatch at index %d", i)
		}
	}
}
