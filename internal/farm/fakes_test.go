package farm

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"steam-trade-farm/internal/model"
	"steam-trade-farm/internal/platform"
	"steam-trade-farm/internal/session"

	"go.uber.org/zap"
)

const testCode = model.SecurityCode(4242)

var (
	initiatorCreds = model.Credentials{
		Username:       "alice",
		Password:       "alice-pass",
		SharedSecret:   "c2hhcmVkLWFsaWNl",
		IdentitySecret: "aWQtYWxpY2U=",
		Tradelink:      "https://trade.example/alice",
	}
	responderCreds = model.Credentials{
		Username:       "bob",
		Password:       "bob-pass",
		SharedSecret:   "c2hhcmVkLWJvYg==",
		IdentitySecret: "aWQtYm9i",
		Tradelink:      "https://trade.example/bob",
	}

	errFake = errors.New("fake transport failure")
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

type fakeClient struct {
	events   chan platform.Event
	logOnErr error

	mu     sync.Mutex
	logons []platform.LogOnDetails
}

func newFakeClient() *fakeClient {
	return &fakeClient{events: make(chan platform.Event, 16)}
}

func (c *fakeClient) LogOn(ctx context.Context, d platform.LogOnDetails) error {
	c.mu.Lock()
	c.logons = append(c.logons, d)
	c.mu.Unlock()
	return c.logOnErr
}

func (c *fakeClient) Events() <-chan platform.Event { return c.events }

type sentOffer struct {
	to      string
	message string
	assets  []string
}

type fakeOffers struct {
	items     []*platform.RawItem
	cookieErr error

	mu      sync.Mutex
	sent    []sentOffer
	cookies int
}

func (f *fakeOffers) SetCookies(cookies []*http.Cookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookies++
	return f.cookieErr
}

func (f *fakeOffers) ListInventory(ctx context.Context, appID int, contextID string, tradableOnly bool) ([]*platform.RawItem, error) {
	return f.items, nil
}

func (f *fakeOffers) CreateOffer(receiveAddress string) (platform.OutgoingOffer, error) {
	return &fakeOutgoing{parent: f, to: receiveAddress}, nil
}

func (f *fakeOffers) sentOffers() []sentOffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentOffer(nil), f.sent...)
}

type fakeOutgoing struct {
	parent  *fakeOffers
	to      string
	message string
	assets  []string
}

func (o *fakeOutgoing) ID() string                { return "out-" + o.to }
func (o *fakeOutgoing) SetMessage(message string) { o.message = message }

func (o *fakeOutgoing) AddMyItem(item *platform.RawItem) error {
	o.assets = append(o.assets, item.AssetID)
	return nil
}

func (o *fakeOutgoing) Send(ctx context.Context) (platform.OfferState, error) {
	o.parent.mu.Lock()
	o.parent.sent = append(o.parent.sent, sentOffer{to: o.to, message: o.message, assets: o.assets})
	o.parent.mu.Unlock()
	return platform.OfferActive, nil
}

type fakeCommunity struct{}

func (fakeCommunity) SetCookies(cookies []*http.Cookie) error { return nil }

func (fakeCommunity) AcceptConfirmationForObject(ctx context.Context, identitySecret, objectID string) error {
	return nil
}

type fakeIncoming struct {
	id         string
	message    string
	give       []*platform.RawItem
	acceptErr  error
	declineErr error

	accepts  int
	declines int
}

func (o *fakeIncoming) ID() string                          { return o.id }
func (o *fakeIncoming) Partner() string                     { return "76561198000000001" }
func (o *fakeIncoming) Message() string                     { return o.message }
func (o *fakeIncoming) ItemsToGive() []*platform.RawItem    { return o.give }
func (o *fakeIncoming) ItemsToReceive() []*platform.RawItem { return nil }

func (o *fakeIncoming) Accept(ctx context.Context) error {
	o.accepts++
	return o.acceptErr
}

func (o *fakeIncoming) Decline(ctx context.Context) error {
	o.declines++
	return o.declineErr
}

type fakeSide struct {
	client *fakeClient
	offers *fakeOffers
	sess   *session.Session
}

func newFakeSide(creds model.Credentials, asset string) *fakeSide {
	offers := &fakeOffers{items: []*platform.RawItem{
		{AssetID: asset, MarketHashName: "Key " + asset, AppID: 440},
	}}
	return &fakeSide{
		client: newFakeClient(),
		offers: offers,
		sess: session.New(session.Config{Credentials: creds, Sleep: noSleep},
			offers, fakeCommunity{}, zap.NewNop()),
	}
}

func (s *fakeSide) account() Account {
	return Account{Session: s.sess, Client: s.client}
}

