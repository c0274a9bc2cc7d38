package tag

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/tagctl/internal/device"
	"golang.org/x/time/rate"
)

// PollBattery reads the battery level n times, at most once per every
func (t *Tag) PollBattery(ctx context.Context, n int, every time.Duration, report Reporter) error {
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	limiter := rate.NewLimiter(limit, 1)

	return t.run(ctx, report, func(s *device.Session) error {
		h, err := t.resolve(ctx, s, device.BatteryService, device.BatteryLevel)
		if err != nil {
			return err
		}

		for i := 0; i < n; i++ {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			level, err := ReadBattery(ctx, h, t.session.OperationTimeout)
			if err != nil {
				return err
			}
			t.logger.WithFields(logrus.Fields{
				"address": t.addr.String(),
				"level":   level,
				"read":    i + 1,
			}).Debug("Battery level read")
			t.emit(report, Event{Kind: EventBattery, Battery: level})
		}
		return sleep(ctx, t.Settle)
	})
}
