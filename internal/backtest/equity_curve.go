package backtest

import (
	"sort"
	"time"
)

// Side is the direction of a trade
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Trade is a realized round trip reported by a backtest runner
type Trade struct {
	ID         string    `json:"id,omitempty"`
	Symbol     string    `json:"symbol,omitempty"`
	Side       Side      `json:"side,omitempty"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	Quantity   float64   `json:"quantity,omitempty"`
	EntryPrice float64   `json:"entry_price,omitempty"`
	ExitPrice  float64   `json:"exit_price,omitempty"`
	PnL        float64   `json:"pnl"`
}

// PortfolioPoint is a portfolio valuation at one instant
type PortfolioPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// PortfolioTimeline is a chronological series of portfolio values
type PortfolioTimeline []PortfolioPoint

// Within returns the points whose time lies in [start, end], sorted by time
func (e PortfolioTimeline) Within(start, end time.Time) PortfolioTimeline {
	out := make(PortfolioTimeline, 0, len(e))
	for _, p := range e {
		if p.Time.Before(start) || p.Time.After(end) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// TradesWithin returns trades whose exit time lies in [start, end], in exit-time order.
// Trades sharing an exit time keep their input order.
func TradesWithin(trades []Trade, start, end time.Time) []Trade {
	out := make([]Trade, 0, len(trades))
	for _, t := range trades {
		if t.ExitTime.Before(start) || t.ExitTime.After(end) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExitTime.Before(out[j].ExitTime) })
	return out
}

// cumulativeSeries builds base plus the running sum of realized P&L.
// The first element is the base itself.
func cumulativeSeries(base float64, trades []Trade) []float64 {
	series := make([]float64, 0, len(trades)+1)
	series = append(series, base)
	running := base
	for _, t := range trades {
		running += t.PnL
		series = append(series, running)
	}
	return series
}

// periodReturns derives step returns, skipping steps whose previous value is not positive
func periodReturns(series []float64) []float64 {
	if len(series) < 2 {
		return []float64{}
	}
	returns := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev := series[i-1]
		if prev <= 0 {
			continue
		}
		returns = append(returns, (series[i]-prev)/prev)
	}
	return returns
}

