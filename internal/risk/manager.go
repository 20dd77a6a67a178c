package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
)

// RiskConfig holds configuration for risk management
type RiskConfig struct {
	StopLossPercent float64 // Fraction below entry that closes the position; 0 disables the stop
	MaxQuantity     float64 // Upper bound on the quantity of one trade; 0 means unbounded
	MaxDailyLoss    float64 // Absolute net loss per day after which no new trade starts; 0 disables
	MaxDailyTrades  int     // 0 means unlimited
}

// RiskStats holds risk management statistics
type RiskStats struct {
	DailyPnL      float64
	DailyTrades   int
	StopLossHits  int
	LastResetTime time.Time
}

// RiskManager implements risk management functionality
type RiskManager struct {
	config RiskConfig
	mu     sync.Mutex
	stats  RiskStats
	now    func() time.Time
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(config RiskConfig) (*RiskManager, error) {
	if config.StopLossPercent < 0 || config.StopLossPercent >= 1 {
		return nil, fmt.Errorf("%w: stop loss percent must be in [0, 1), got %v", ports.ErrConfigurationError, config.StopLossPercent)
	}
	if config.MaxQuantity < 0 || config.MaxDailyLoss < 0 || config.MaxDailyTrades < 0 {
		return nil, fmt.Errorf("%w: risk limits must not be negative", ports.ErrConfigurationError)
	}
	r := &RiskManager{config: config, now: time.Now}
	r.stats.LastResetTime = r.now()
	return r, nil
}

// GetStopLoss calculates the stop loss price for a long position.
func (r *RiskManager) GetStopLoss(entryPrice float64) float64 {
	if r.config.StopLossPercent == 0 {
		return 0
	}
	return entryPrice * (1 - r.config.StopLossPercent)
}

// StopLossHit reports whether price has fallen to the trade's stop.
func (r *RiskManager) StopLossHit(tc domain.TradeContext, price float64) bool {
	return tc.StopLossPrice > 0 && price <= tc.StopLossPrice
}

// ResolveExit combines the strategy's exit decision with the stop-loss. The
// stop-loss wins when both fire on the same tick.
func (r *RiskManager) ResolveExit(ctx context.Context, tc domain.TradeContext, price float64, decision ports.ExitDecision) ports.ExitDecision {
	if r.StopLossHit(tc, price) {
		decision.Exit = true
		decision.Reason = domain.ExitReasonStopLoss
		return decision
	}
	if decision.Exit && decision.Reason == domain.ExitReasonNone {
		decision.Reason = domain.ExitReasonTarget
	}
	return decision
}

// ValidateEntry checks whether a new trade of quantity may start.
func (r *RiskManager) ValidateEntry(ctx context.Context, quantity float64) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %v", ports.ErrInvalidRequest, quantity)
	}
	if r.config.MaxQuantity > 0 && quantity > r.config.MaxQuantity {
		return fmt.Errorf("%w: quantity %v exceeds maximum allowed %v", ports.ErrInvalidRequest, quantity, r.config.MaxQuantity)
	}
	return r.CheckRiskLimits(ctx)
}

// UpdateStats records the outcome of a finished trade.
func (r *RiskManager) UpdateStats(ctx context.Context, tc domain.TradeContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetIfNewDayLocked()

	r.stats.DailyTrades++
	if tc.State != domain.StateClosed {
		return
	}
	r.stats.DailyPnL += domain.NetPnL(tc.EntryPrice, tc.ExitPrice, tc.Quantity)
	if tc.ExitReason == domain.ExitReasonStopLoss {
		r.stats.StopLossHits++
	}
}

// CheckRiskLimits checks if any risk limits have been exceeded
func (r *RiskManager) CheckRiskLimits(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetIfNewDayLocked()

	if r.config.MaxDailyLoss > 0 && r.stats.DailyPnL <= -r.config.MaxDailyLoss {
		return fmt.Errorf("%w: daily loss %f reached maximum allowed %f", ports.ErrPermissionDenied, -r.stats.DailyPnL, r.config.MaxDailyLoss)
	}
	if r.config.MaxDailyTrades > 0 && r.stats.DailyTrades >= r.config.MaxDailyTrades {
		return fmt.Errorf("%w: daily trades %d reached maximum allowed %d", ports.ErrPermissionDenied, r.stats.DailyTrades, r.config.MaxDailyTrades)
	}
	return nil
}

// GetStats returns a copy of the current risk management statistics
func (r *RiskManager) GetStats() RiskStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *RiskManager) resetIfNewDayLocked() {
	now := r.now().UTC()
	last := r.stats.LastResetTime.UTC()
	if now.YearDay() != last.YearDay() || now.Year() != last.Year() {
		r.stats = RiskStats{LastResetTime: now}
	}
}
