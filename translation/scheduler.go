package translation

import (
	"time"
)

// BackupScheduler snapshots the store on a fixed interval until stopped.
type BackupScheduler struct {
	m      *Manager
	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}
}

// StartBackups starts taking a backup every interval. It returns nil when
// interval is not positive or no backup directory is configured.
func (m *Manager) StartBackups(interval time.Duration) *BackupScheduler {
	if interval <= 0 || m.opts.BackupDir == "" {
		return nil
	}
	s := &BackupScheduler{
		m:      m,
		ticker: time.NewTicker(interval),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	logger.WithField("interval", interval).Info("scheduled periodic backups")
	go s.run()
	return s
}

func (s *BackupScheduler) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ticker.C:
			if _, err := s.m.Backup(); err != nil {
				logger.WithError(err).Error("scheduled backup failed")
			}
		case <-s.stop:
			return
		}
	}
}

// Stop halts the scheduler and waits for a running backup to finish. It is
// safe to call on a nil scheduler.
func (s *BackupScheduler) Stop() {
	if s == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	<-s.done
}
