package console

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"

	"klineTrader/internal/app"
	"klineTrader/internal/domain"
	"klineTrader/internal/strategy/analytics"
	"klineTrader/internal/strategy/backtesting"
	"klineTrader/internal/strategy/optimization"
)

// RenderHealth prints the system status and 24h ticker check.
func RenderHealth(w io.Writer, report app.HealthReport) {
	t := newTable(w, "Exchange health "+report.CheckedAt.Format(time.RFC3339))
	t.AppendHeader(table.Row{"Check", "Result"})
	t.AppendRow(table.Row{"system status", report.Status})
	if report.TickerErr != nil {
		t.AppendRow(table.Row{"ticker " + report.Symbol, report.TickerErr.Error()})
	}
	if tk := report.Ticker; tk != nil {
		t.AppendRow(table.Row{"last price", price(tk.LastPrice)})
		t.AppendRow(table.Row{"24h open", price(tk.Open)})
		t.AppendRow(table.Row{"24h high", price(tk.High)})
		t.AppendRow(table.Row{"24h low", price(tk.Low)})
		t.AppendRow(table.Row{"24h volume", price(tk.Volume)})
		t.AppendRow(table.Row{"best bid", price(tk.BestBid)})
		t.AppendRow(table.Row{"best ask", price(tk.BestAsk)})
		if tk.Open > 0 {
			t.AppendRow(table.Row{"24h change %", percent((tk.LastPrice - tk.Open) / tk.Open)})
		}
	}
	t.AppendFooter(table.Row{"healthy", fmt.Sprint(report.Healthy)})
	t.Render()
}

// RenderTrades prints the ledger records of one day with a net P&L total.
func RenderTrades(w io.Writer, day time.Time, trades []*domain.Trade) {
	t := newTable(w, domain.CollectionName(day))
	t.AppendHeader(table.Row{"Trade", "Strategy", "Status", "Buy", "Sell", "Qty", "Exit", "Net P&L"})

	total := decimal.Zero
	for _, tr := range trades {
		reason := string(tr.ExitReason)
		if tr.Cancelled {
			reason = tr.CancelReason
		}
		t.AppendRow(table.Row{
			shortID(tr.TradeID),
			tr.Strategy,
			string(tr.Status),
			price(tr.BuyPrice),
			price(tr.SellPrice),
			price(tr.Quantity),
			reason,
			price(tr.NetPnL),
		})
		total = total.Add(decimal.NewFromFloat(tr.NetPnL))
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", fmt.Sprintf("%d trades", len(trades)), total.Round(pricePlaces).String()})
	t.Render()
}

// RenderOrderTrade prints the full ledger record holding orderID, or a
// not-found line when trade is nil.
func RenderOrderTrade(w io.Writer, orderID int64, trade *domain.Trade) {
	if trade == nil {
		fmt.Fprintf(w, "No trade holds order %d\n", orderID)
		return
	}
	t := newTable(w, fmt.Sprintf("Order %d", orderID))
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"trade", trade.TradeID})
	t.AppendRow(table.Row{"strategy", trade.Strategy})
	t.AppendRow(table.Row{"symbol", trade.Symbol})
	t.AppendRow(table.Row{"status", string(trade.Status)})
	t.AppendRow(table.Row{"quantity", price(trade.Quantity)})
	t.AppendSeparator()
	t.AppendRow(table.Row{"buy order", trade.BuyOrderID})
	t.AppendRow(table.Row{"buy price", price(trade.BuyPrice)})
	t.AppendRow(table.Row{"buy fill", price(trade.BuyFillPrice)})
	t.AppendRow(table.Row{"buy executed", price(trade.BuyExecutedQty)})
	t.AppendSeparator()
	t.AppendRow(table.Row{"sell order", trade.SellOrderID})
	t.AppendRow(table.Row{"sell price", price(trade.SellPrice)})
	t.AppendRow(table.Row{"sell fill", price(trade.SellFillPrice)})
	t.AppendRow(table.Row{"sell executed", price(trade.SellExecutedQty)})
	t.AppendSeparator()
	reason := string(trade.ExitReason)
	if trade.Cancelled {
		reason = trade.CancelReason
	}
	t.AppendRow(table.Row{"exit", reason})
	t.AppendFooter(table.Row{"net p&l", price(trade.NetPnL)})
	t.Render()
}

// RenderBacktest prints the metrics and trade list of a backtest.
func RenderBacktest(w io.Writer, result *backtesting.BacktestResult) {
	summary := newTable(w, fmt.Sprintf("Backtest %s %s (%d candles)", result.Strategy, result.Symbol, result.Candles))
	summary.AppendHeader(table.Row{"Metric", "Value"})
	summary.AppendRows(metricRows(result.Metrics))
	if result.Open != nil {
		summary.AppendFooter(table.Row{"open position", price(result.Open.BuyPrice)})
	}
	summary.Render()

	if len(result.Trades) == 0 {
		return
	}
	trades := newTable(w, "")
	trades.AppendHeader(table.Row{"#", "Entry", "Buy", "Exit", "Sell", "Reason", "Net P&L"})
	for i, tr := range result.Trades {
		trades.AppendRow(table.Row{
			i + 1,
			tr.TimeOfBuy.UTC().Format("2006-01-02 15:04"),
			price(tr.BuyPrice),
			tr.TimeOfSell.UTC().Format("2006-01-02 15:04"),
			price(tr.SellPrice),
			string(tr.ExitReason),
			price(tr.NetPnL),
		})
	}
	trades.Render()
}

// RenderPerformance prints the metrics of ledger trades over a period.
func RenderPerformance(w io.Writer, title string, m *analytics.PerformanceMetrics) {
	t := newTable(w, title)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows(metricRows(m))
	t.AppendRow(table.Row{"cancelled", m.CancelledTrades})
	t.Render()
}

func metricRows(m *analytics.PerformanceMetrics) []table.Row {
	return []table.Row{
		{"trades", m.TotalTrades},
		{"win rate", percent(m.WinRate)},
		{"stop-loss exits", m.StopLossExits},
		{"total profit", price(m.TotalProfit)},
		{"profit factor", ratio(m.ProfitFactor)},
		{"max drawdown", percent(m.MaxDrawdown)},
		{"sharpe ratio", ratio(m.SharpeRatio)},
		{"final balance", price(m.FinalBalance)},
		{"return", percent(m.ReturnOnInvestment)},
		{"avg duration", m.AverageTradeDuration.String()},
	}
}

// RenderOptimization prints the best top parameter sets.
func RenderOptimization(w io.Writer, code string, results []optimization.OptimizationResult, top int) {
	if top > 0 && len(results) > top {
		results = results[:top]
	}
	t := newTable(w, "Optimization "+code)
	t.AppendHeader(table.Row{"Rank", "Parameters", "Score", "Trades", "Win rate", "Profit", "Max DD"})
	for i, r := range results {
		t.AppendRow(table.Row{
			i + 1,
			formatParams(r.Parameters),
			ratio(r.Score),
			r.Metrics.TotalTrades,
			percent(r.Metrics.WinRate),
			price(r.Metrics.TotalProfit),
			percent(r.Metrics.MaxDrawdown),
		})
	}
	t.Render()
}

func formatParams(params map[string]float64) string {
	parts := make([]string, 0, len(params))
	for _, name := range sortedKeys(params) {
		parts = append(parts, name+"="+decimal.NewFromFloat(params[name]).String())
	}
	return strings.Join(parts, " ")
}

func percent(v float64) string {
	return round(v*100, 2) + "%"
}

func ratio(v float64) string {
	return round(v, 4)
}

// round formats v with decimal, which cannot represent infinities or NaN.
func round(v float64, places int32) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).Round(places).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
