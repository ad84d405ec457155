// Package session owns one platform account: its web session cookies, its
// inventory snapshot and the retrying offer operations.
package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"steam-trade-farm/internal/cache"
	"steam-trade-farm/internal/logger"
	"steam-trade-farm/internal/model"
	"steam-trade-farm/internal/platform"

	"go.uber.org/zap"
)

// DefaultRetryBackoff is the fixed wait between send or accept attempts.
const DefaultRetryBackoff = 2 * time.Second

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config holds the per-account settings of a Session.
type Config struct {
	Credentials  model.Credentials
	ContextID    string
	RetryBackoff time.Duration

	// Cache receives a summary of every fetched inventory. Optional.
	Cache       cache.Cache
	SnapshotTTL time.Duration

	// Sleep replaces Wait, mainly in tests.
	Sleep SleepFunc
}

// Session is one account's connection to the platform.
// Operations run sequentially per call chain; Session is safe for use by the
// account's event loop and concurrent status readers.
type Session struct {
	creds     model.Credentials
	offers    platform.OfferManager
	community platform.Community
	log       *zap.Logger

	contextID   string
	backoff     time.Duration
	sleep       SleepFunc
	cache       cache.Cache
	snapshotTTL time.Duration

	mu        sync.RWMutex
	inventory []*model.Item
}

// New creates a session for cfg.Credentials over the given collaborators.
func New(cfg Config, offers platform.OfferManager, community platform.Community, log *zap.Logger) *Session {
	if cfg.ContextID == "" {
		cfg.ContextID = model.DefaultContextID
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.Sleep == nil {
		cfg.Sleep = Wait
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = 10 * time.Minute
	}

	return &Session{
		creds:       cfg.Credentials,
		offers:      offers,
		community:   community,
		log:         logger.Account(log.Named("session"), cfg.Credentials.Username),
		contextID:   cfg.ContextID,
		backoff:     cfg.RetryBackoff,
		sleep:       cfg.Sleep,
		cache:       cfg.Cache,
		snapshotTTL: cfg.SnapshotTTL,
	}
}

// Username returns the account's login name.
func (s *Session) Username() string {
	return s.creds.Username
}

// Credentials returns the account's credentials.
func (s *Session) Credentials() model.Credentials {
	return s.creds
}

// Tradelink returns the address other accounts send offers to.
func (s *Session) Tradelink() string {
	return s.creds.Tradelink
}

// Logger returns the account-tagged logger.
func (s *Session) Logger() *zap.Logger {
	return s.log
}

// ApplyCookies hands the web session cookies to the offer manager and the
// community client.
func (s *Session) ApplyCookies(cookies []*http.Cookie) error {
	s.log.Info("starting web session", zap.Int("cookies", len(cookies)))

	if err := s.offers.SetCookies(cookies); err != nil {
		return fmt.Errorf("set offer manager cookies: %w", err)
	}
	if err := s.community.SetCookies(cookies); err != nil {
		return fmt.Errorf("set community cookies: %w", err)
	}

	s.log.Info("web session established")
	return nil
}

// Inventory returns the last fetched snapshot.
func (s *Session) Inventory() []*model.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Item, len(s.inventory))
	copy(out, s.inventory)
	return out
}

// Wait sleeps for d unless ctx is done first.
func Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
