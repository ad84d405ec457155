package session

import (
	"context"
	"net/http"
	"time"

	"steam-trade-farm/internal/model"
	"steam-trade-farm/internal/platform"

	"go.uber.org/zap"
)

type fakeOutgoing struct {
	id       string
	message  string
	items    []*platform.RawItem
	sendFunc func() (platform.OfferState, error)
	addErr   error
	sent     bool
}

func (o *fakeOutgoing) ID() string                { return o.id }
func (o *fakeOutgoing) SetMessage(message string) { o.message = message }

func (o *fakeOutgoing) AddMyItem(item *platform.RawItem) error {
	if o.addErr != nil {
		return o.addErr
	}
	o.items = append(o.items, item)
	return nil
}

func (o *fakeOutgoing) Send(ctx context.Context) (platform.OfferState, error) {
	o.sent = true
	return o.sendFunc()
}

type fakeOffers struct {
	ListInventoryFunc func() ([]*platform.RawItem, error)
	SendFunc          func(attempt int) (platform.OfferState, error)
	AddErr            error
	CreateErr         error

	created []*fakeOutgoing
	cookies []*http.Cookie
	sends   int
}

func (f *fakeOffers) SetCookies(cookies []*http.Cookie) error {
	f.cookies = cookies
	return nil
}

func (f *fakeOffers) ListInventory(ctx context.Context, appID int, contextID string, tradableOnly bool) ([]*platform.RawItem, error) {
	return f.ListInventoryFunc()
}

func (f *fakeOffers) CreateOffer(receiveAddress string) (platform.OutgoingOffer, error) {
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	o := &fakeOutgoing{id: "offer-" + receiveAddress, addErr: f.AddErr}
	o.sendFunc = func() (platform.OfferState, error) {
		f.sends++
		return f.SendFunc(f.sends)
	}
	f.created = append(f.created, o)
	return o, nil
}

type confirmCall struct {
	identitySecret string
	objectID       string
}

type fakeCommunity struct {
	ConfirmErr error
	calls      []confirmCall
	cookies    []*http.Cookie
}

func (c *fakeCommunity) SetCookies(cookies []*http.Cookie) error {
	c.cookies = cookies
	return nil
}

func (c *fakeCommunity) AcceptConfirmationForObject(ctx context.Context, identitySecret, objectID string) error {
	c.calls = append(c.calls, confirmCall{identitySecret: identitySecret, objectID: objectID})
	return c.ConfirmErr
}

type fakeIncoming struct {
	id         string
	AcceptFunc func(attempt int) error
	DeclineErr error
	accepts    int
	declines   int
}

func (o *fakeIncoming) ID() string                          { return o.id }
func (o *fakeIncoming) Partner() string                     { return "partner" }
func (o *fakeIncoming) Message() string                     { return "" }
func (o *fakeIncoming) ItemsToGive() []*platform.RawItem    { return nil }
func (o *fakeIncoming) ItemsToReceive() []*platform.RawItem { return nil }

func (o *fakeIncoming) Accept(ctx context.Context) error {
	o.accepts++
	return o.AcceptFunc(o.accepts)
}

func (o *fakeIncoming) Decline(ctx context.Context) error {
	o.declines++
	return o.DeclineErr
}

// recordingSleep records requested delays without waiting.
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

var testCreds = model.Credentials{
	IdentitySecret: "aWRlbnRpdHk=",
	SharedSecret:   "c2hhcmVk",
	Username:       "alpha",
	Password:       "pw",
	Tradelink:      "https://example.com/tradeoffer/new/?partner=1",
}

func newTestSession(offers *fakeOffers, community *fakeCommunity, sleeper *recordingSleep) *Session {
	return New(Config{
		Credentials: testCreds,
		Sleep:       sleeper.sleep,
	}, offers, community, zap.NewNop())
}

func testItem(assetID string) *model.Item {
	item, _ := model.NewItem(&platform.RawItem{AssetID: assetID, MarketHashName: "Key " + assetID, AppID: 440})
	return item
}
