package verification

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultSweepInterval = time.Minute

// Sweeper periodically removes expired challenges.
type Sweeper struct {
	service  *Service
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
	logger   *log.Entry
}

func NewSweeper(service *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		service:  service,
		interval: interval,
		done:     make(chan struct{}),
		logger:   log.WithField("object", "CaptchaSweeper"),
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.run(runCtx)
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.once.Do(s.cancel)
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down captcha sweeper by cancelled context")
			return
		case <-ticker.C:
			removed, err := s.service.Sweep(ctx)
			if err != nil {
				s.logger.WithError(err).Warn("captcha sweep failed")
				continue
			}
			if removed > 0 {
				s.logger.WithField("count", removed).Debug("expired captchas removed")
			}
		}
	}
}
