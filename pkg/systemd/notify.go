// Package systemd speaks the sd_notify protocol. Every call is a no-op when
// the process was not started by systemd (NOTIFY_SOCKET unset).
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"workflow/pkg/logx"
)

type Notifier struct {
	log logx.Logger
}

func New(log logx.Logger) Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return Notifier{log: log}
}

// Ready tells systemd that startup finished (Type=notify units).
func (n Notifier) Ready() bool { return n.send(daemon.SdNotifyReady) }

func (n Notifier) Stopping() bool { return n.send(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func (n Notifier) Status(msg string) bool { return n.send("STATUS=" + msg) }

func (n Notifier) send(state string) bool {
	ok, err := daemon.SdNotify(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return false
	}
	return ok
}

// Watchdog pings systemd at half of WatchdogSec until ctx ends.
// It returns immediately when the unit has no watchdog.
func (n Notifier) Watchdog(ctx context.Context) error {
	every, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return err
	}
	if every <= 0 {
		return nil
	}
	t := time.NewTicker(every / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
