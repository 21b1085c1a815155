// Package sdnotify integrates with the systemd service manager when the
// daemon runs as a Type=notify unit. Outside systemd every call is a no-op.
package sdnotify

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "resaleradar/pkg/logx"
)

// Ready tells systemd the daemon finished startup.
func Ready(log logx.Logger) {
	ok, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Warn("sd_notify READY failed", logx.Err(err))
		return
	}
	if ok {
		log.Debug("sd_notify READY sent")
	}
}

// Stopping tells systemd shutdown has begun.
func Stopping(log logx.Logger) {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// Watchdog starts a keepalive loop when WatchdogSec is configured on the
// unit, pinging at half the configured interval. Returns immediately when
// no watchdog is armed.
func Watchdog(ctx context.Context, log logx.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warn("sd_watchdog query failed", logx.Err(err))
		return
	}
	if interval == 0 {
		return
	}

	tick := interval / 2
	if tick < time.Second {
		tick = time.Second
	}
	log.Debug("systemd watchdog armed", logx.Duration("interval", tick))

	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
