package infra

import (
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultExecCheckInterval = 5 * time.Second

// WatchExecutable closes the returned channel when the running binary is
// replaced on disk, so a supervisor can restart the process with the new
// build. The channel is also closed when ctx ends.
func WatchExecutable(ctx context.Context, path string, interval time.Duration) <-chan struct{} {
	ch := make(chan struct{})
	if interval <= 0 {
		interval = DefaultExecCheckInterval
	}
	go func() {
		defer close(ch)
		entry := log.WithFields(log.Fields{"object": "ExecWatcher", "path": path})

		stat, err := os.Stat(path)
		if err != nil {
			entry.WithError(err).Warn("cant stat executable for monitor")
			<-ctx.Done()
			return
		}
		originalTime := stat.ModTime()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stat, err := os.Stat(path)
				if err != nil {
					entry.WithError(err).Warn("cant stat executable for monitor tick")
					continue
				}
				if !originalTime.Equal(stat.ModTime()) {
					entry.Info("executable was modified")
					return
				}
			}
		}
	}()
	return ch
}
