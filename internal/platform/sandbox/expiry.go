package sandbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ExpiryConfig holds configuration for the offer expiry scheduler.
type ExpiryConfig struct {
	// OfferTTL is how long a pending or active offer stays open.
	// Default: 10 minutes
	OfferTTL time.Duration

	// Interval is how often expired offers are swept.
	// Default: 1 minute
	Interval time.Duration
}

// ExpiryScheduler periodically expires stale offers.
type ExpiryScheduler struct {
	store     *Store
	config    ExpiryConfig
	log       *zap.Logger
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewExpiryScheduler creates a scheduler over store.
func NewExpiryScheduler(store *Store, config ExpiryConfig, log *zap.Logger) *ExpiryScheduler {
	if config.OfferTTL == 0 {
		config.OfferTTL = 10 * time.Minute
	}
	if config.Interval == 0 {
		config.Interval = time.Minute
	}

	return &ExpiryScheduler{
		store:  store,
		config: config,
		log:    log.Named("expiry"),
		stopCh: make(chan struct{}),
	}
}

// Start begins the sweep loop. Calling Start twice is a no-op.
func (s *ExpiryScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	s.log.Info("started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("offer_ttl", s.config.OfferTTL))

	go s.run()
}

func (s *ExpiryScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stopCh:
			s.log.Info("stopped")
			return
		}
	}
}

func (s *ExpiryScheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expired, err := s.RunNow(ctx)
	if err != nil {
		s.log.Error("sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		s.log.Info("expired stale offers", zap.Int64("count", expired))
	}
}

// Stop stops the scheduler.
func (s *ExpiryScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

// RunNow expires stale offers immediately.
func (s *ExpiryScheduler) RunNow(ctx context.Context) (int64, error) {
	return s.store.ExpireOffers(ctx, s.config.OfferTTL)
}
