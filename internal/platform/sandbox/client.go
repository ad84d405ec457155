package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"steam-trade-farm/internal/platform"
	"steam-trade-farm/internal/steamguard"
	"steam-trade-farm/pkg/uid"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidAuthCode = errors.New("invalid two-factor code")
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrInvalidIdentity = errors.New("invalid identity secret")
)

// Client is one account's view of the exchange. It implements
// platform.Client, platform.OfferManager and platform.Community.
type Client struct {
	exchange *Exchange
	username string
	steamID  string
	events   chan platform.Event

	mu            sync.RWMutex
	sessionID     string
	offerCookies  bool
	communityAuth bool

	// now is replaced in tests.
	now func() time.Time
}

func newClient(e *Exchange, username, steamID string) *Client {
	return &Client{
		exchange: e,
		username: username,
		steamID:  steamID,
		events:   make(chan platform.Event, eventBuffer),
		now:      time.Now,
	}
}

// Offers returns the offer manager view of the client.
func (c *Client) Offers() platform.OfferManager { return offerManager{c} }

// Community returns the confirmation view of the client.
func (c *Client) Community() platform.Community { return community{c} }

// SteamID returns the account's numeric id.
func (c *Client) SteamID() string { return c.steamID }

// Events implements platform.Client.
func (c *Client) Events() <-chan platform.Event {
	return c.events
}

// LogOn checks the password and two-factor code. The outcome is reported on
// Events: LoggedOn followed by WebSession, or Error.
func (c *Client) LogOn(ctx context.Context, details platform.LogOnDetails) error {
	acct, err := c.exchange.store.Account(ctx, details.AccountName)
	if err != nil {
		return err
	}

	if err := c.verify(acct, details); err != nil {
		c.exchange.log.Warn("log on rejected", zap.String("account", details.AccountName), zap.Error(err))
		c.exchange.deliver(c.username, platform.Event{Kind: platform.EventError, Err: err, Message: err.Error()})
		return nil
	}

	sessionID := uid.New()
	c.mu.Lock()
	c.sessionID = sessionID
	c.offerCookies = false
	c.communityAuth = false
	c.mu.Unlock()

	c.exchange.deliver(c.username, platform.Event{Kind: platform.EventLoggedOn})
	c.exchange.deliver(c.username, platform.Event{
		Kind:      platform.EventWebSession,
		SessionID: sessionID,
		Cookies: []*http.Cookie{
			{Name: sessionCookie, Value: sessionID},
			{Name: "steamLoginSecure", Value: c.steamID + "||" + sessionID},
		},
	})
	return nil
}

func (c *Client) verify(acct *account, details platform.LogOnDetails) error {
	if acct.Username != c.username {
		return fmt.Errorf("%w: client belongs to %s", ErrInvalidPassword, c.username)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(details.Password)); err != nil {
		return ErrInvalidPassword
	}

	// Accept the current code and its neighbours to tolerate clock skew.
	now := c.now()
	for _, skew := range []time.Duration{0, -30 * time.Second, 30 * time.Second} {
		code, err := steamguard.GenerateAuthCode(acct.SharedSecret, now.Add(skew))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidAuthCode, err)
		}
		if code == details.TwoFactorCode {
			return nil
		}
	}
	return ErrInvalidAuthCode
}

// Disconnect ends the session and emits a Disconnected event.
func (c *Client) Disconnect(reason string) {
	c.mu.Lock()
	c.sessionID = ""
	c.offerCookies = false
	c.communityAuth = false
	c.mu.Unlock()

	c.exchange.deliver(c.username, platform.Event{Kind: platform.EventDisconnected, Message: reason})
}

func (c *Client) checkCookies(cookies []*http.Cookie) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.sessionID == "" {
		return ErrNotLoggedIn
	}
	for _, ck := range cookies {
		if ck.Name == sessionCookie && ck.Value == c.sessionID {
			return nil
		}
	}
	return fmt.Errorf("%w: session cookie does not match", ErrNotLoggedIn)
}

func (c *Client) requireOfferSession() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.offerCookies {
		return ErrNotLoggedIn
	}
	return nil
}

func (c *Client) requireCommunitySession() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.communityAuth {
		return ErrNotLoggedIn
	}
	return nil
}

// offerManager adapts Client to platform.OfferManager.
type offerManager struct{ c *Client }

func (m offerManager) SetCookies(cookies []*http.Cookie) error {
	if err := m.c.checkCookies(cookies); err != nil {
		return err
	}
	m.c.mu.Lock()
	m.c.offerCookies = true
	m.c.mu.Unlock()
	return nil
}

func (m offerManager) ListInventory(ctx context.Context, appID int, contextID string, tradableOnly bool) ([]*platform.RawItem, error) {
	if err := m.c.requireOfferSession(); err != nil {
		return nil, err
	}
	return m.c.exchange.store.ListItems(ctx, m.c.username, appID, contextID, tradableOnly)
}

func (m offerManager) CreateOffer(receiveAddress string) (platform.OutgoingOffer, error) {
	if err := m.c.requireOfferSession(); err != nil {
		return nil, err
	}
	return &outgoingOffer{client: m.c, tradelink: receiveAddress}, nil
}

// community adapts Client to platform.Community.
type community struct{ c *Client }

func (cm community) SetCookies(cookies []*http.Cookie) error {
	if err := cm.c.checkCookies(cookies); err != nil {
		return err
	}
	cm.c.mu.Lock()
	cm.c.communityAuth = true
	cm.c.mu.Unlock()
	return nil
}

// AcceptConfirmationForObject activates a pending offer sent by this account
// and notifies the recipient.
func (cm community) AcceptConfirmationForObject(ctx context.Context, identitySecret, objectID string) error {
	if err := cm.c.requireCommunitySession(); err != nil {
		return err
	}

	ex := cm.c.exchange
	acct, err := ex.store.Account(ctx, cm.c.username)
	if err != nil {
		return err
	}
	if acct.IdentitySecret != identitySecret {
		return ErrInvalidIdentity
	}

	offer, err := ex.store.Offer(ctx, objectID)
	if err != nil {
		return err
	}
	if offer.Sender != cm.c.username {
		return fmt.Errorf("%w: offer %s was not sent by %s", ErrUnknownOffer, objectID, cm.c.username)
	}
	if err := ex.store.Transition(ctx, objectID, platform.OfferPending, platform.OfferActive); err != nil {
		return err
	}
	offer.State = platform.OfferActive

	sender, err := ex.store.Account(ctx, offer.Sender)
	if err != nil {
		return err
	}
	ex.log.Info("offer confirmed",
		zap.String("offer_id", objectID),
		zap.String("from", offer.Sender),
		zap.String("to", offer.Recipient))

	ex.deliver(offer.Recipient, platform.Event{
		Kind:  platform.EventNewOffer,
		Offer: newIncomingOffer(ex, offer, sender.SteamID),
	})
	return nil
}
