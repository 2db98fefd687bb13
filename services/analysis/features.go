package analysis

import (
	"fmt"
	"math"

	"stock_etl_project/models"

	"github.com/shopspring/decimal"
)

// Indicator windows used by Transform
const (
	SMAShortWindow   = 10
	SMALongWindow    = 50
	RSIWindow        = 14
	VolatilityWindow = 30
)

// ValidationError reports malformed input to the feature engine:
// empty, unsorted or duplicate-dated bar sequences. It indicates bad
// data rather than transient trouble, so callers must not retry it.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid bar sequence: " + e.Reason
}

// ComputeSMA calculates the simple moving average over a trailing
// window. result[i] is nil while fewer than window prices are
// available, i.e. for i+1 < window.
func ComputeSMA(prices []decimal.Decimal, window int) []*decimal.Decimal {
	result := make([]*decimal.Decimal, len(prices))
	if window < 1 {
		return result
	}

	sum := decimal.Zero
	for i, price := range prices {
		sum = sum.Add(price)
		if i >= window {
			sum = sum.Sub(prices[i-window])
		}
		if i+1 >= window {
			mean := sum.Div(decimal.NewFromInt(int64(window)))
			result[i] = &mean
		}
	}

	return result
}

// ComputeRSI calculates the Relative Strength Index using a simple
// rolling average of gains and losses over the trailing window of
// price deltas (Cutler's variant, not Wilder's exponential smoothing;
// the two give different numeric results). result[i] is nil while
// fewer than window prior deltas exist. When the average loss is zero
// the RSI is pinned at 100.
func ComputeRSI(prices []decimal.Decimal, window int) []*decimal.Decimal {
	result := make([]*decimal.Decimal, len(prices))
	if window < 1 || len(prices) <= window {
		return result
	}

	hundred := decimal.NewFromInt(100)
	periods := decimal.NewFromInt(int64(window))

	gains := make([]decimal.Decimal, len(prices))
	losses := make([]decimal.Decimal, len(prices))
	gainSum := decimal.Zero
	lossSum := decimal.Zero

	for i := 1; i < len(prices); i++ {
		change := prices[i].Sub(prices[i-1])
		if change.GreaterThan(decimal.Zero) {
			gains[i] = change
		} else {
			losses[i] = change.Abs()
		}

		gainSum = gainSum.Add(gains[i])
		lossSum = lossSum.Add(losses[i])
		if i > window {
			gainSum = gainSum.Sub(gains[i-window])
			lossSum = lossSum.Sub(losses[i-window])
		}

		if i < window {
			continue
		}

		var rsi decimal.Decimal
		avgLoss := lossSum.Div(periods)
		if avgLoss.IsZero() {
			rsi = hundred
		} else {
			rs := gainSum.Div(periods).Div(avgLoss)
			rsi = hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
		}
		result[i] = &rsi
	}

	return result
}

// ComputeDailyReturns calculates the per-row percentage change of the
// close. result[0] is nil, as is any index whose previous close is
// zero.
func ComputeDailyReturns(prices []decimal.Decimal) []*decimal.Decimal {
	result := make([]*decimal.Decimal, len(prices))
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev.IsZero() {
			continue
		}
		ret := prices[i].Sub(prev).Div(prev)
		result[i] = &ret
	}
	return result
}

// ComputeVolatility calculates the rolling sample standard deviation
// of daily returns. result[i] is nil unless the trailing window of
// returns is fully populated. Standard deviation goes through float64
// for the square root.
func ComputeVolatility(returns []*decimal.Decimal, window int) []*decimal.Decimal {
	result := make([]*decimal.Decimal, len(returns))
	if window < 2 {
		return result
	}

	for i := window; i < len(returns); i++ {
		vals := make([]float64, 0, window)
		for j := i - window + 1; j <= i; j++ {
			if returns[j] == nil {
				vals = nil
				break
			}
			f, _ := returns[j].Float64()
			vals = append(vals, f)
		}
		if vals == nil {
			continue
		}

		mean := 0.0
		for _, v := range vals {
			mean += v
		}
		mean /= float64(window)

		variance := 0.0
		for _, v := range vals {
			diff := v - mean
			variance += diff * diff
		}

		stdDev := decimal.NewFromFloat(math.Sqrt(variance / float64(window-1)))
		result[i] = &stdDev
	}

	return result
}

// Transform derives the feature sequence for one symbol from its raw
// bar sequence. The input must be non-empty and sorted ascending by
// date with no duplicate dates, otherwise a *ValidationError is
// returned. Transform is a pure function: no I/O, and identical input
// always yields identical output.
func Transform(raw []models.RawBar) ([]models.FeatureBar, error) {
	if len(raw) == 0 {
		return nil, &ValidationError{Reason: "empty bar sequence"}
	}

	for i := 1; i < len(raw); i++ {
		prev := raw[i-1].Date
		cur := raw[i].Date
		if cur.Equal(prev) {
			return nil, &ValidationError{Reason: fmt.Sprintf("duplicate date %s", cur.Format("2006-01-02"))}
		}
		if cur.Before(prev) {
			return nil, &ValidationError{Reason: fmt.Sprintf("bars not sorted ascending at date %s", cur.Format("2006-01-02"))}
		}
	}

	closes := make([]decimal.Decimal, len(raw))
	for i, bar := range raw {
		closes[i] = bar.Close
	}

	sma10 := ComputeSMA(closes, SMAShortWindow)
	sma50 := ComputeSMA(closes, SMALongWindow)
	rsi14 := ComputeRSI(closes, RSIWindow)
	returns := ComputeDailyReturns(closes)
	volatility := ComputeVolatility(returns, VolatilityWindow)

	features := make([]models.FeatureBar, len(raw))
	for i, bar := range raw {
		features[i] = models.FeatureBar{
			StockID:      bar.StockID,
			Date:         bar.Date,
			Close:        bar.Close,
			SMA10:        sma10[i],
			SMA50:        sma50[i],
			RSI14:        rsi14[i],
			DailyReturn:  returns[i],
			Volatility30: volatility[i],
		}
	}

	return features, nil
}
