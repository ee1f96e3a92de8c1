package backtest

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const periodsPerYear = 365.0

// Ratio is a float that may legitimately be infinite and still serializes to JSON
type Ratio float64

// Float64 returns the underlying value
func (r Ratio) Float64() float64 { return float64(r) }

// IsInf reports whether the ratio is infinite
func (r Ratio) IsInf() bool { return math.IsInf(float64(r), 0) }

// MarshalJSON writes ±Inf as the strings "+Inf" and "-Inf"
func (r Ratio) MarshalJSON() ([]byte, error) {
	v := float64(r)
	switch {
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	case math.IsNaN(v):
		return []byte("0"), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

// UnmarshalJSON accepts numbers and the infinity strings
func (r *Ratio) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case "+Inf", "Inf", "Infinity":
			*r = Ratio(math.Inf(1))
		case "-Inf", "-Infinity":
			*r = Ratio(math.Inf(-1))
		default:
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("invalid ratio %q: %w", s, err)
			}
			*r = Ratio(v)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Ratio(v)
	return nil
}

func (r Ratio) String() string {
	v := float64(r)
	if math.IsInf(v, 1) {
		return "+Inf"
	}
	if math.IsInf(v, -1) {
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// PerformanceMetrics summarizes one (combination, period) evaluation
type PerformanceMetrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	SharpeRatio      Ratio   `json:"sharpe_ratio"`
	SortinoRatio     Ratio   `json:"sortino_ratio"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     Ratio   `json:"profit_factor"`
	TotalTrades      int     `json:"total_trades"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	GrossProfit      float64 `json:"gross_profit"`
	GrossLoss        float64 `json:"gross_loss"`
	AverageWin       float64 `json:"average_win"`
	AverageLoss      float64 `json:"average_loss"`
	Expectancy       float64 `json:"expectancy"`
	LargestWin       float64 `json:"largest_win"`
	LargestLoss      float64 `json:"largest_loss"`
}

// ToJSON exports metrics to JSON
func (m PerformanceMetrics) ToJSON() string {
	data, _ := json.Marshal(m)
	return string(data)
}

// MetricsOptions carries calculator settings
type MetricsOptions struct {
	// RiskFreeRate is annual, e.g. 0.02 for 2%
	RiskFreeRate float64
}

// CalculateMetrics computes performance metrics for trades closed within period.
// The result never contains NaN; empty input yields the zero record.
func CalculateMetrics(trades []Trade, timeline PortfolioTimeline, period Period, opts MetricsOptions) PerformanceMetrics {
	inRange := TradesWithin(trades, period.Start, period.End)
	if len(inRange) == 0 {
		return PerformanceMetrics{}
	}

	metrics := PerformanceMetrics{}
	points := timeline.Within(period.Start, period.End)
	metrics.TotalReturn = calculateTotalReturn(points)
	metrics.AnnualizedReturn = calculateAnnualizedReturn(metrics.TotalReturn, period.Days())

	base := 0.0
	if len(points) > 0 && points[0].Value > 0 {
		base = points[0].Value
	}
	series := cumulativeSeries(base, inRange)
	metrics.MaxDrawdown = calculateMaxDrawdown(series) * 100

	returns := periodReturns(series)
	metrics.SharpeRatio = Ratio(calculateSharpeRatio(returns, opts.RiskFreeRate))
	metrics.SortinoRatio = Ratio(calculateSortinoRatio(returns, opts.RiskFreeRate))

	metrics.TotalTrades = len(inRange)
	stats := calculateTradeStats(inRange)
	metrics.WinningTrades = stats.wins
	metrics.LosingTrades = stats.losses
	metrics.GrossProfit = stats.grossProfit
	metrics.GrossLoss = stats.grossLoss
	metrics.AverageWin = stats.averageWin
	metrics.AverageLoss = stats.averageLoss
	metrics.LargestWin = stats.largestWin
	metrics.LargestLoss = stats.largestLoss
	metrics.WinRate = calculateWinRate(stats.wins, metrics.TotalTrades)
	metrics.ProfitFactor = Ratio(calculateProfitFactor(stats.grossProfit, stats.grossLoss))
	metrics.Expectancy = finiteOrZero((stats.grossProfit - stats.grossLoss) / float64(metrics.TotalTrades))

	return metrics
}

func calculateTotalReturn(points PortfolioTimeline) float64 {
	if len(points) < 2 {
		return 0
	}
	first := points[0].Value
	last := points[len(points)-1].Value
	if first <= 0 {
		return 0
	}
	return finiteOrZero((last - first) / first)
}

func calculateAnnualizedReturn(totalReturn, days float64) float64 {
	if days <= 0 {
		return 0
	}
	growth := 1 + totalReturn
	if growth <= 0 {
		return -1
	}
	return finiteOrZero(math.Pow(growth, periodsPerYear/days) - 1)
}

func calculateMaxDrawdown(series []float64) float64 {
	maxDD := 0.0
	peak := math.Inf(-1)
	for _, v := range series {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - v) / peak
		if drawdown > maxDD {
			maxDD = drawdown
		}
	}
	return math.Max(0, math.Min(1, maxDD))
}

func calculateSharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := average(returns)
	std := stddev(returns)
	if std == 0 {
		return 0
	}
	return finiteOrZero((mean - riskFreeRate/periodsPerYear) / std * math.Sqrt(periodsPerYear))
}

func calculateSortinoRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	downside := downsideDeviation(returns)
	if downside == 0 {
		return math.Inf(1)
	}
	return finiteOrZero((average(returns) - riskFreeRate/periodsPerYear) / downside * math.Sqrt(periodsPerYear))
}

func calculateProfitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / grossLoss
}

type tradeStats struct {
	wins        int
	losses      int
	grossProfit float64
	grossLoss   float64
	averageWin  float64
	averageLoss float64
	largestWin  float64
	largestLoss float64
}

func calculateTradeStats(trades []Trade) tradeStats {
	stats := tradeStats{}
	lossSum := 0.0
	for _, t := range trades {
		pl := t.PnL
		if math.IsNaN(pl) || math.IsInf(pl, 0) {
			continue
		}
		if pl > 0 {
			stats.wins++
			stats.grossProfit += pl
			if pl > stats.largestWin {
				stats.largestWin = pl
			}
		} else if pl < 0 {
			stats.losses++
			lossSum += pl
			if pl < stats.largestLoss {
				stats.largestLoss = pl
			}
		}
	}
	stats.grossLoss = math.Abs(lossSum)
	if stats.wins > 0 {
		stats.averageWin = stats.grossProfit / float64(stats.wins)
	}
	if stats.losses > 0 {
		stats.averageLoss = lossSum / float64(stats.losses)
	}
	return stats
}

func calculateWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total) * 100
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	return mean / float64(len(values))
}

// stddev is the population standard deviation
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := average(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// downsideDeviation is sqrt(mean(r^2)) over the negative returns
func downsideDeviation(values []float64) float64 {
	sum := 0.0
	count := 0
	for _, v := range values {
		if v < 0 {
			sum += v * v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// RankingMetric selects the metric optimizers and the aggregator compare on
type RankingMetric string

const (
	RankSharpe           RankingMetric = "sharpe_ratio"
	RankSortino          RankingMetric = "sortino_ratio"
	RankTotalReturn      RankingMetric = "total_return"
	RankAnnualizedReturn RankingMetric = "annualized_return"
	RankProfitFactor     RankingMetric = "profit_factor"
	RankWinRate          RankingMetric = "win_rate"
)

// DefaultRankingMetric is used when none is configured
const DefaultRankingMetric = RankSharpe

// ParseRankingMetric converts a configuration string into a RankingMetric
func ParseRankingMetric(s string) (RankingMetric, error) {
	switch RankingMetric(strings.ToLower(strings.TrimSpace(s))) {
	case "", "sharpe", RankSharpe:
		return RankSharpe, nil
	case "sortino", RankSortino:
		return RankSortino, nil
	case RankTotalReturn:
		return RankTotalReturn, nil
	case RankAnnualizedReturn:
		return RankAnnualizedReturn, nil
	case RankProfitFactor:
		return RankProfitFactor, nil
	case RankWinRate:
		return RankWinRate, nil
	default:
		return "", &ConfigError{Field: "ranking_metric", Reason: fmt.Sprintf("unknown metric %q", s)}
	}
}

// Value extracts the ranking metric from m
func (r RankingMetric) Value(m PerformanceMetrics) float64 {
	switch r {
	case RankSortino:
		return m.SortinoRatio.Float64()
	case RankTotalReturn:
		return m.TotalReturn
	case RankAnnualizedReturn:
		return m.AnnualizedReturn
	case RankProfitFactor:
		return m.ProfitFactor.Float64()
	case RankWinRate:
		return m.WinRate
	default:
		return m.SharpeRatio.Float64()
	}
}

// CalculateDegradation returns (train - test) / |train|, or 0 when undefined
func CalculateDegradation(train, test float64) float64 {
	if train == 0 || math.IsNaN(train) || math.IsInf(train, 0) || math.IsNaN(test) || math.IsInf(test, 0) {
		return 0
	}
	return (train - test) / math.Abs(train)
}
