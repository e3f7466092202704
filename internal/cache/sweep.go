package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mileusna/crontab"
)

// DefaultSweepSchedule runs the expiry sweep at the top of every hour.
const DefaultSweepSchedule = "0 * * * *"

// ScheduleSweep registers t.Sweep on a crontab. Call Shutdown on the result
// to stop it.
func ScheduleSweep(t *Tiered, schedule string) (*crontab.Crontab, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	ctab := crontab.New()
	err := ctab.AddJob(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n := t.Sweep(ctx)
		slog.Info("cache: sweep finished", slog.Int("removed", n))
	})
	if err != nil {
		ctab.Shutdown()
		return nil, fmt.Errorf("schedule cache sweep %q: %w", schedule, err)
	}
	return ctab, nil
}
