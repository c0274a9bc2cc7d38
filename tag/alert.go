package tag

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/tagctl/internal/device"
)

// Beep reads the battery, then makes the tag beep for dur and silences it.
// The alert is switched off even when the wait is interrupted.
func (t *Tag) Beep(ctx context.Context, dur time.Duration, report Reporter) error {
	return t.run(ctx, report, func(s *device.Session) error {
		battery, err := t.resolve(ctx, s, device.BatteryService, device.BatteryLevel)
		if err != nil {
			return err
		}
		alert, err := t.resolve(ctx, s, device.ImmediateAlertService, device.AlertLevel)
		if err != nil {
			return err
		}

		level, err := ReadBattery(ctx, battery, t.session.OperationTimeout)
		if err != nil {
			return err
		}
		t.emit(report, Event{Kind: EventBattery, Battery: level})
		if err := sleep(ctx, t.Settle); err != nil {
			return err
		}

		t.emit(report, Event{Kind: EventAlertOn})
		if err := Alert(ctx, alert, AlertMild, t.session.OperationTimeout); err != nil {
			return err
		}
		waitErr := sleep(ctx, dur)

		t.emit(report, Event{Kind: EventAlertOff})
		if err := Alert(context.WithoutCancel(ctx), alert, AlertOff, t.session.OperationTimeout); err != nil {
			return err
		}
		if waitErr != nil {
			return waitErr
		}

		t.logger.WithFields(logrus.Fields{
			"address":  t.addr.String(),
			"duration": dur,
		}).Info("Alert completed")
		return sleep(ctx, t.Settle)
	})
}
