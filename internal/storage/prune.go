package storage

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wolfdex/idjc/pkg/logx"
)

const DefaultRetentionDays = 30

// StartPruner schedules a daily prune of old send records and returns the
// running cron. Call Stop() on shutdown. A nil store yields a nil cron.
func StartPruner(store Store, retention time.Duration, log logx.Logger) *cron.Cron {
	if store == nil {
		return nil
	}
	if retention <= 0 {
		retention = DefaultRetentionDays * 24 * time.Hour
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	c := cron.New()
	_, err := c.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := store.PruneSends(ctx, time.Now().Add(-retention))
		if err != nil {
			log.Warn("send audit prune failed", logx.Err(err))
			return
		}
		if n > 0 {
			log.Info("send audit pruned", logx.Int64("rows", n))
		}
	})
	if err != nil {
		// "@daily" is a constant spec; this cannot happen in practice.
		log.Error("prune schedule rejected", logx.Err(err))
		return nil
	}
	c.Start()
	return c
}
