package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/semina/core"
	"github.com/trezcool/semina/core/seminar"
)

// runScheduler ticks every minute and fires the daily selection while the
// trigger window is live. The selection engine is idempotent, so firing on
// several consecutive ticks is harmless.
func runScheduler(ctx context.Context, conf *core.Config, svc *seminar.Service, logger core.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	logger.Info("scheduler started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			if !svc.ShouldTriggerAutoSelection() {
				continue
			}
			runCtx, cancel := context.WithTimeout(ctx, conf.Seminar.OpTimeout)
			res, err := svc.RunDailySelection(runCtx)
			cancel()
			if err != nil {
				logger.Error(fmt.Sprintf("scheduled selection failed: %v", err), err)
				continue
			}
			logger.Info("scheduled selection: " + res.Message)
		}
	}
}
