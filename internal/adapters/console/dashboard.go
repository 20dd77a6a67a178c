package console

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
	"klineTrader/internal/utils"
)

const pricePlaces = 8

// Dashboard prints one pair of tables per evaluated tick: the recent candle
// window and the current indicator readings.
type Dashboard struct {
	mu   sync.Mutex
	out  io.Writer
	rows int
}

// NewDashboard creates a dashboard showing the last rows candles of each window.
func NewDashboard(out io.Writer, rows int) *Dashboard {
	if rows <= 0 {
		rows = 5
	}
	return &Dashboard{out: out, rows: rows}
}

// ReportTick implements ports.StatusReporter.
func (d *Dashboard) ReportTick(ctx context.Context, report ports.TickReport) {
	d.mu.Lock()
	defer d.mu.Unlock()

	klines := report.Klines
	if len(klines) > d.rows {
		klines = klines[len(klines)-d.rows:]
	}

	window := newTable(d.out, fmt.Sprintf("%s | %s %s", report.Phase, report.Trade.Strategy, report.Trade.Symbol))
	window.AppendHeader(table.Row{"Open Time", "Open", "High", "Low", "Close", "Volume"})
	for _, k := range klines {
		window.AppendRow(table.Row{
			k.HumanTime(),
			price(k.Open),
			price(k.High),
			price(k.Low),
			price(k.Close),
			price(k.Volume),
		})
	}
	window.Render()

	status := newTable(d.out, "")
	status.AppendHeader(table.Row{"Field", "Value"})
	status.AppendRow(table.Row{"state", string(report.Trade.State)})
	status.AppendRow(table.Row{"trade", report.Trade.TradeID})
	status.AppendRow(table.Row{"best ask", price(report.BestAsk)})
	status.AppendRow(table.Row{"best bid", price(report.BestBid)})
	if report.Trade.State == domain.StateAwaitingExit {
		status.AppendRow(table.Row{"entry", price(report.Trade.EntryPrice)})
		if report.Trade.TargetPrice > 0 {
			status.AppendRow(table.Row{"target", price(report.Trade.TargetPrice)})
		}
		if report.Trade.StopLossPrice > 0 {
			status.AppendRow(table.Row{"stop loss", price(report.Trade.StopLossPrice)})
		}
	}
	for _, name := range sortedKeys(report.Readings) {
		status.AppendRow(table.Row{name, price(report.Readings[name])})
	}
	status.Render()
}

var _ ports.StatusReporter = (*Dashboard)(nil)

func newTable(out io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

func price(v float64) string {
	return utils.FormatDecimal(v, pricePlaces)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
