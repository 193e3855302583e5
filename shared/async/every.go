package async

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "async")

// RunEvery invokes fn once per period in a background goroutine until the
// context closes. The name identifies the routine in logs.
func RunEvery(ctx context.Context, name string, period time.Duration, fn func()) {
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-ctx.Done():
				log.WithField("routine", name).Debug("Context closed, exiting routine")
				return
			}
		}
	}()
}
