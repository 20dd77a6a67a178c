package app

import (
	"context"

	"klineTrader/internal/domain"
)

// checkpointKey identifies the in-flight trade of this strategy and symbol.
func (r *Runner) checkpointKey() string {
	return r.strategy.Code() + ":" + r.cfg.Symbol
}

// resume loads an unfinished trade saved by a previous process.
func (r *Runner) resume(ctx context.Context) (domain.TradeContext, bool, error) {
	op := "resume"
	if r.checkpoints == nil {
		return domain.TradeContext{}, false, nil
	}
	saved, err := r.checkpoints.Load(ctx, r.checkpointKey())
	if err != nil {
		return domain.TradeContext{}, false, err
	}
	if saved == nil || saved.State == domain.StateIdle || saved.State.IsTerminal() {
		return domain.TradeContext{}, false, nil
	}

	trade, err := r.ledger.FindTrade(ctx, saved.TradeID)
	if err != nil {
		return domain.TradeContext{}, false, err
	}
	if trade == nil {
		r.logger.Warn(ctx, op+": checkpoint refers to unknown trade, starting fresh", map[string]interface{}{"tradeID": saved.TradeID})
		r.clearCheckpoint(ctx)
		return domain.TradeContext{}, false, nil
	}

	r.logger.Info(ctx, op+": resuming trade", map[string]interface{}{"tradeID": saved.TradeID, "state": saved.State})
	return *saved, true, nil
}

func (r *Runner) saveCheckpoint(ctx context.Context, tc domain.TradeContext) {
	if r.checkpoints == nil {
		return
	}
	if err := r.checkpoints.Save(ctx, r.checkpointKey(), tc); err != nil {
		r.logger.Error(ctx, err, "saveCheckpoint: failed", map[string]interface{}{"tradeID": tc.TradeID, "state": tc.State})
	}
}

func (r *Runner) clearCheckpoint(ctx context.Context) {
	if r.checkpoints == nil {
		return
	}
	if err := r.checkpoints.Clear(ctx, r.checkpointKey()); err != nil {
		r.logger.Error(ctx, err, "clearCheckpoint: failed")
	}
}
