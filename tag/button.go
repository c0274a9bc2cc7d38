package tag

import (
	"context"
	"time"

	"github.com/srg/tagctl/internal/device"
)

// ListenButton waits for n button presses. Each press is one notification on
// the tag's custom characteristic. A zero timeout waits for each press until
// ctx ends.
func (t *Tag) ListenButton(ctx context.Context, n int, timeout time.Duration, report Reporter) error {
	return t.run(ctx, report, func(s *device.Session) error {
		h, err := t.resolve(ctx, s, device.TagService, device.TagButton)
		if err != nil {
			return err
		}
		if err := h.Subscribe(ctx); err != nil {
			return err
		}

		for i := 1; i <= n; i++ {
			t.emit(report, Event{Kind: EventWaitingForPress, Press: i, Presses: n})
			v, err := h.AwaitNotification(ctx, timeout)
			if err != nil {
				return err
			}
			var value byte
			if len(v) > 0 {
				value = v[0]
			}
			t.emit(report, Event{Kind: EventPress, Press: i, Presses: n, Value: value})
		}
		return sleep(ctx, t.Settle)
	})
}
