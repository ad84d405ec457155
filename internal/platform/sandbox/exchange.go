// Package sandbox is a local, SQLite-backed stand-in for the trading
// platform. It implements every platform interface so the farm can run end
// to end without a live account.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"steam-trade-farm/internal/model"
	"steam-trade-farm/internal/platform"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	eventBuffer   = 64
	steamIDBase   = 76561198000000000
	sessionCookie = "sessionid"
)

// Exchange routes offers between registered accounts.
type Exchange struct {
	store *Store
	log   *zap.Logger

	// bcryptCost is lowered in tests.
	bcryptCost int

	mu      sync.Mutex
	clients map[string]*Client
}

// NewExchange wraps an opened store.
func NewExchange(store *Store, log *zap.Logger) *Exchange {
	return &Exchange{
		store:      store,
		log:        log.Named("sandbox"),
		bcryptCost: bcrypt.DefaultCost,
		clients:    make(map[string]*Client),
	}
}

// Store returns the backing store.
func (e *Exchange) Store() *Store {
	return e.store
}

// Register creates or updates the sandbox account for creds and returns its
// client. Registering the same login twice returns the same client.
func (e *Exchange) Register(ctx context.Context, creds model.Credentials) (*Client, error) {
	if err := creds.Validate(creds.Username); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), e.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	steamID, err := e.steamIDFor(ctx, creds.Username)
	if err != nil {
		return nil, err
	}

	err = e.store.UpsertAccount(ctx, account{
		Username:       creds.Username,
		SteamID:        steamID,
		PasswordHash:   string(hash),
		SharedSecret:   creds.SharedSecret,
		IdentitySecret: creds.IdentitySecret,
		Tradelink:      creds.Tradelink,
	})
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.clients[creds.Username]; ok {
		return c, nil
	}
	c := newClient(e, creds.Username, steamID)
	e.clients[creds.Username] = c

	e.log.Info("account registered", zap.String("account", creds.Username), zap.String("steam_id", steamID))
	return c, nil
}

func (e *Exchange) steamIDFor(ctx context.Context, username string) (string, error) {
	existing, err := e.store.Account(ctx, username)
	if err == nil {
		return existing.SteamID, nil
	}
	if !errors.Is(err, ErrUnknownAccount) {
		return "", err
	}
	n, err := e.store.CountAccounts(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", steamIDBase+n+1), nil
}

func (e *Exchange) client(username string) *Client {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clients[username]
}

// deliver queues ev for username's client, dropping it when the queue is full.
func (e *Exchange) deliver(username string, ev platform.Event) {
	c := e.client(username)
	if c == nil {
		return
	}
	select {
	case c.events <- ev:
	default:
		e.log.Warn("event queue full, dropping event",
			zap.String("account", username),
			zap.Stringer("kind", ev.Kind))
	}
}
