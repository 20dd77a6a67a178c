package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Kline represents a single candlestick data point.
type Kline struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval
	Symbol    string    // Trading symbol
	Interval  string    // Kline interval (e.g., "1m", "1h")
	Open      float64   // Opening price
	High      float64   // Highest price
	Low       float64   // Lowest price
	Close     float64   // Closing price
	Volume    float64   // Trading volume
	IsFinal   bool      // Whether this kline is the final one for the interval
}

// Epoch returns the open time as unix seconds.
func (k *Kline) Epoch() int64 {
	return k.OpenTime.Unix()
}

// HumanTime returns the open time formatted for display.
func (k *Kline) HumanTime() string {
	return k.OpenTime.UTC().Format("2006-01-02 15:04:05")
}

// Last returns the most recent kline of an ascending window, or nil.
func Last(klines []*Kline) *Kline {
	if len(klines) == 0 {
		return nil
	}
	return klines[len(klines)-1]
}

// ClosedBy drops trailing klines that are still forming at now.
func ClosedBy(klines []*Kline, now time.Time) []*Kline {
	n := len(klines)
	for n > 0 && klines[n-1].CloseTime.After(now) {
		n--
	}
	return klines[:n]
}

// After returns the suffix of klines opened strictly after t.
func After(klines []*Kline, t time.Time) []*Kline {
	for i, k := range klines {
		if k.OpenTime.After(t) {
			return klines[i:]
		}
	}
	return nil
}

// ParseInterval parses a kline interval such as 1m, 4h, 1d or 1w.
func ParseInterval(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	var unit time.Duration
	switch interval[len(interval)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid interval %q: unit must be m, h, d or w", interval)
	}
	return time.Duration(n) * unit, nil
}
