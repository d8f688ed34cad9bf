package sqlite

import (
	"strings"
	"time"
)

const (
	busyRetries = 5
	busyBackoff = 20 * time.Millisecond
)

// retryOnBusy reruns fn while SQLite reports a locked database. busy_timeout
// covers most contention; this catches SQLITE_BUSY returned at commit.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(busyBackoff * time.Duration(attempt+1))
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
