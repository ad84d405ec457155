package farm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"steam-trade-farm/internal/cache"
	"steam-trade-farm/internal/model"
	"steam-trade-farm/internal/platform"
	"steam-trade-farm/internal/session"
	"steam-trade-farm/internal/steamguard"

	"go.uber.org/zap"
)

const (
	DefaultInitialSettle = 2 * time.Second
	DefaultOfferSettle   = 3 * time.Second
	DefaultMaxRetries    = 5

	claimPrefix     = "farm:offer:"
	defaultClaimTTL = 24 * time.Hour
)

var ErrNoSecurityCode = errors.New("security code is not set")

// Account pairs a session with the client that delivers its events.
type Account struct {
	Session *session.Session
	Client  platform.Client
}

// Config holds the cycle timing and budgets. Negative values select the
// defaults; zero settle delays are honoured.
type Config struct {
	AppID         int
	MaxRetries    int
	InitialSettle time.Duration
	OfferSettle   time.Duration
	LogOnTimeout  time.Duration

	// ClaimTTL bounds how long a handled offer id is remembered.
	ClaimTTL time.Duration

	Sleep session.SleepFunc
	Now   func() time.Time
}

// account is the orchestrator's per-account bookkeeping.
type account struct {
	role   Role
	self   *session.Session
	client platform.Client

	mu        sync.RWMutex
	state     State
	lastError string
	lastEvent time.Time

	sent     atomic.Int64
	accepted atomic.Int64
	declined atomic.Int64
	failed   atomic.Int64
}

// Orchestrator runs the event loops of both accounts.
type Orchestrator struct {
	cfg   Config
	code  model.SecurityCode
	cache cache.Cache
	log   *zap.Logger

	accounts [2]*account
}

// New wires initiator and responder around code. The initiator sends the
// first offer once its web session is up. c may be nil, in which case
// offers are not deduplicated across restarts of the event loop.
func New(cfg Config, initiator, responder Account, code model.SecurityCode, c cache.Cache, log *zap.Logger) (*Orchestrator, error) {
	if code.IsZero() {
		return nil, ErrNoSecurityCode
	}
	for i, a := range []Account{initiator, responder} {
		if a.Session == nil || a.Client == nil {
			return nil, fmt.Errorf("account %d: session and client are required", i+1)
		}
		if err := a.Session.Credentials().Validate(fmt.Sprintf("account%d", i+1)); err != nil {
			return nil, err
		}
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialSettle < 0 {
		cfg.InitialSettle = DefaultInitialSettle
	}
	if cfg.OfferSettle < 0 {
		cfg.OfferSettle = DefaultOfferSettle
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = defaultClaimTTL
	}
	if cfg.Sleep == nil {
		cfg.Sleep = session.Wait
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Orchestrator{
		cfg:   cfg,
		code:  code,
		cache: c,
		log:   log.Named("farm"),
		accounts: [2]*account{
			{role: RoleInitiator, self: initiator.Session, client: initiator.Client},
			{role: RoleResponder, self: responder.Session, client: responder.Client},
		},
	}, nil
}

// Run logs both accounts on and processes their events until ctx is done.
// It returns an error only if a log on request cannot be issued.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.Info("starting trade cycle",
		zap.Int("app_id", o.cfg.AppID),
		zap.Int("max_retries", o.cfg.MaxRetries),
		zap.String("initiator", o.accounts[0].self.Username()),
		zap.String("responder", o.accounts[1].self.Username()))

	// Both log ons are issued before either loop starts, so each account is
	// Authenticating before its counterpart can produce an offer for it.
	for _, a := range o.accounts {
		if err := o.logOn(ctx, a); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	for i, a := range o.accounts {
		a := a
		counterpart := o.accounts[1-i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.loop(ctx, a, counterpart)
		}()
	}
	wg.Wait()
	o.log.Info("trade cycle stopped")
	return nil
}

func (o *Orchestrator) logOn(ctx context.Context, a *account) error {
	creds := a.self.Credentials()
	log := a.self.Logger()

	code, err := steamguard.GenerateAuthCode(creds.SharedSecret, o.cfg.Now())
	if err != nil {
		return fmt.Errorf("auth code for %s: %w", creds.Username, err)
	}

	a.setState(StateAuthenticating)
	log.Info("logging in")

	if o.cfg.LogOnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.LogOnTimeout)
		defer cancel()
	}
	err = a.client.LogOn(ctx, platform.LogOnDetails{
		AccountName:   creds.Username,
		Password:      creds.Password,
		TwoFactorCode: code,
	})
	if err != nil {
		a.setState(StateDisconnected)
		a.recordError(err)
		return fmt.Errorf("log on %s: %w", creds.Username, err)
	}
	return nil
}

func (o *Orchestrator) loop(ctx context.Context, self, counterpart *account) {
	events := self.client.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				self.self.Logger().Warn("event stream closed")
				self.setState(StateDisconnected)
				return
			}
			o.dispatch(ctx, self, counterpart, ev)
		}
	}
}

// dispatch runs the state machine for ev and executes its effects. Errors
// are logged against the account and never stop the loop.
func (o *Orchestrator) dispatch(ctx context.Context, self, counterpart *account, ev platform.Event) {
	log := self.self.Logger()

	self.mu.Lock()
	prev := self.state
	next, effects := Transition(prev, self.role, ev.Kind)
	self.state = next
	self.lastEvent = o.cfg.Now()
	self.mu.Unlock()

	if next != prev {
		log.Debug("state changed",
			zap.Stringer("from", prev),
			zap.Stringer("to", next),
			zap.Stringer("event", ev.Kind))
	}

	for _, e := range effects {
		if err := o.apply(ctx, self, counterpart, ev, e); err != nil {
			if ctx.Err() != nil {
				return
			}
			if e.Kind == EffectApplyCookies && prev == StateAuthenticating {
				// The session never became usable; the next web session
				// starts over, initial offer included.
				self.setState(StateAuthenticating)
			}
			self.failed.Add(1)
			self.recordError(err)
			log.Error("error processing event", zap.Stringer("event", ev.Kind), zap.Error(err))
			return
		}
	}
}

func (o *Orchestrator) apply(ctx context.Context, self, counterpart *account, ev platform.Event, e Effect) error {
	log := self.self.Logger()

	switch e.Kind {
	case EffectLog:
		log.Info(e.Message)
	case EffectWarn:
		fields := []zap.Field{zap.Stringer("event", ev.Kind)}
		if ev.Message != "" {
			fields = append(fields, zap.String("detail", ev.Message))
		}
		if ev.Err != nil {
			fields = append(fields, zap.Error(ev.Err))
			self.recordError(ev.Err)
		}
		log.Warn(e.Message, fields...)
	case EffectApplyCookies:
		if e.Message != "" {
			log.Info(e.Message)
		}
		return self.self.ApplyCookies(ev.Cookies)
	case EffectSendInitial:
		return o.sendInitial(ctx, self, counterpart)
	case EffectHandleOffer:
		return o.handleOffer(ctx, self, counterpart, ev.Offer)
	}
	return nil
}

// sendInitial waits for the counterpart's session to settle and sends it
// the first item.
func (o *Orchestrator) sendInitial(ctx context.Context, self, counterpart *account) error {
	if err := o.cfg.Sleep(ctx, o.cfg.InitialSettle); err != nil {
		return err
	}
	return o.sendItem(ctx, self, counterpart, "sending first trade offer")
}

// handleOffer is the symmetric per-account reaction to an inbound offer:
// accept and send an item back when it is safe, decline otherwise.
func (o *Orchestrator) handleOffer(ctx context.Context, self, counterpart *account, raw platform.IncomingOffer) error {
	log := self.self.Logger()
	log.Info("new trade offer received")

	offer, err := model.NewInboundOffer(raw, o.code)
	if err != nil {
		return err
	}
	log = log.With(zap.String("offer_id", offer.ID()))

	if !o.claim(ctx, offer.ID(), log) {
		log.Info("offer already handled, skipping")
		return nil
	}

	if !offer.IsSafe() {
		d := offer.Details()
		log.Warn("unsafe trade detected, declining",
			zap.String("partner", d.Partner),
			zap.Int("items_to_give", d.ItemsToGive))
		if err := self.self.DeclineOffer(ctx, raw); err != nil {
			log.Warn("error declining offer", zap.Error(err))
			return nil
		}
		self.declined.Add(1)
		return nil
	}

	log.Info("confirmed safe trade, accepting offer")
	if err := self.self.AcceptOffer(ctx, raw, o.cfg.MaxRetries); err != nil {
		return err
	}
	self.accepted.Add(1)

	if err := o.cfg.Sleep(ctx, o.cfg.OfferSettle); err != nil {
		return err
	}
	return o.sendItem(ctx, self, counterpart, "sending new offer")
}

func (o *Orchestrator) sendItem(ctx context.Context, self, counterpart *account, msg string) error {
	log := self.self.Logger()

	log.Info("searching for item in inventory")
	item, err := self.self.FirstAvailableItem(ctx, o.cfg.AppID)
	if err != nil {
		return err
	}

	log.Info(msg, zap.String("item", item.Name()), zap.String("asset_id", item.AssetID()))
	err = self.self.SendOffer(ctx, counterpart.self.Tradelink(), o.code.String(), []*model.Item{item}, o.cfg.MaxRetries)
	if err != nil {
		return err
	}
	self.sent.Add(1)
	return nil
}

// claim marks an offer id as handled and reports whether this call was the
// first. Cache failures fall through to handling the offer.
func (o *Orchestrator) claim(ctx context.Context, offerID string, log *zap.Logger) bool {
	if o.cache == nil || offerID == "" {
		return true
	}
	ok, err := o.cache.SetNX(ctx, claimPrefix+offerID, []byte(o.cfg.Now().UTC().Format(time.RFC3339)), o.cfg.ClaimTTL)
	if err != nil {
		log.Warn("offer claim failed, handling anyway", zap.Error(err))
		return true
	}
	return ok
}

func (a *account) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *account) recordError(err error) {
	a.mu.Lock()
	a.lastError = err.Error()
	a.mu.Unlock()
}
