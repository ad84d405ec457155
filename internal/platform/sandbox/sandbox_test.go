package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"steam-trade-farm/internal/model"
	"steam-trade-farm/internal/platform"
	"steam-trade-farm/internal/steamguard"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testApp = 440

var (
	aliceCreds = model.Credentials{
		Username:       "alice",
		Password:       "alice-pass",
		SharedSecret:   "c2hhcmVkLXNlY3JldC1hbGljZQ==",
		IdentitySecret: "aWRlbnRpdHktYWxpY2U=",
		Tradelink:      "https://trade.example/alice",
	}
	bobCreds = model.Credentials{
		Username:       "bob",
		Password:       "bob-pass",
		SharedSecret:   "c2hhcmVkLXNlY3JldC1ib2I=",
		IdentitySecret: "aWRlbnRpdHktYm9i",
		Tradelink:      "https://trade.example/bob",
	}
)

func newTestExchange(t *testing.T) *Exchange {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "sandbox.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ex := NewExchange(store, zap.NewNop())
	ex.bcryptCost = bcrypt.MinCost
	return ex
}

func register(t *testing.T, ex *Exchange, creds model.Credentials) *Client {
	t.Helper()
	c, err := ex.Register(context.Background(), creds)
	if err != nil {
		t.Fatalf("Register(%s): %v", creds.Username, err)
	}
	return c
}

func nextEvent(t *testing.T, c *Client) platform.Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatalf("no event for %s", c.username)
		return platform.Event{}
	}
}

// logOn authenticates c and applies its web session cookies.
func logOn(t *testing.T, c *Client, creds model.Credentials) {
	t.Helper()
	code, err := steamguard.GenerateAuthCode(creds.SharedSecret, time.Now())
	if err != nil {
		t.Fatalf("GenerateAuthCode: %v", err)
	}
	err = c.LogOn(context.Background(), platform.LogOnDetails{
		AccountName:   creds.Username,
		Password:      creds.Password,
		TwoFactorCode: code,
	})
	if err != nil {
		t.Fatalf("LogOn: %v", err)
	}

	if ev := nextEvent(t, c); ev.Kind != platform.EventLoggedOn {
		t.Fatalf("first event = %v, want LoggedOn", ev.Kind)
	}
	ev := nextEvent(t, c)
	if ev.Kind != platform.EventWebSession || ev.SessionID == "" {
		t.Fatalf("second event = %+v, want WebSession", ev)
	}
	if err := c.Offers().SetCookies(ev.Cookies); err != nil {
		t.Fatalf("offers SetCookies: %v", err)
	}
	if err := c.Community().SetCookies(ev.Cookies); err != nil {
		t.Fatalf("community SetCookies: %v", err)
	}
}

func TestRegister_Idempotent(t *testing.T) {
	ex := newTestExchange(t)

	first := register(t, ex, aliceCreds)
	second := register(t, ex, aliceCreds)
	if first != second {
		t.Error("registering twice returned different clients")
	}
	if first.SteamID() == "" {
		t.Error("steam id not assigned")
	}

	n, err := ex.Store().CountAccounts(context.Background())
	if err != nil || n != 1 {
		t.Errorf("CountAccounts = %d, %v; want 1", n, err)
	}
}

func TestRegister_IncompleteCredentials(t *testing.T) {
	ex := newTestExchange(t)
	creds := aliceCreds
	creds.Password = ""

	if _, err := ex.Register(context.Background(), creds); !errors.Is(err, model.ErrIncompleteCredentials) {
		t.Fatalf("err = %v, want ErrIncompleteCredentials", err)
	}
}

func TestLogOn_RejectsBadCredentials(t *testing.T) {
	tests := []struct {
		name    string
		details platform.LogOnDetails
		want    error
	}{
		{
			name:    "wrong password",
			details: platform.LogOnDetails{AccountName: "alice", Password: "nope", TwoFactorCode: "XXXXX"},
			want:    ErrInvalidPassword,
		},
		{
			name:    "wrong code",
			details: platform.LogOnDetails{AccountName: "alice", Password: aliceCreds.Password, TwoFactorCode: "22222"},
			want:    ErrInvalidAuthCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := newTestExchange(t)
			c := register(t, ex, aliceCreds)
			c.now = func() time.Time { return time.Unix(1700000000, 0) }

			if err := c.LogOn(context.Background(), tt.details); err != nil {
				t.Fatalf("LogOn returned %v; failures are reported as events", err)
			}
			ev := nextEvent(t, c)
			if ev.Kind != platform.EventError || !errors.Is(ev.Err, tt.want) {
				t.Fatalf("event = %+v, want Error wrapping %v", ev, tt.want)
			}
		})
	}
}

func TestListInventory_RequiresSession(t *testing.T) {
	ex := newTestExchange(t)
	c := register(t, ex, aliceCreds)

	if _, err := c.Offers().ListInventory(context.Background(), testApp, "2", true); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("err = %v, want ErrNotLoggedIn", err)
	}
}

func TestSeed_DefaultAndExplicit(t *testing.T) {
	ex := newTestExchange(t)
	alice := register(t, ex, aliceCreds)
	register(t, ex, bobCreds)

	seed := Seed{Accounts: map[string][]SeedItem{
		"bob": {
			{Name: "Strange Scattergun", Type: "Primary weapon", Rarity: "Strange"},
			{Name: "Gift", Untradable: true},
		},
	}}
	ctx := context.Background()
	if err := seed.Apply(ctx, ex, testApp, "2", "alice", "bob"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// A second apply must not mint more items.
	if err := seed.Apply(ctx, ex, testApp, "2", "alice", "bob"); err != nil {
		t.Fatalf("second Apply: %v", err)
	}

	logOn(t, alice, aliceCreds)
	items, err := alice.Offers().ListInventory(ctx, testApp, "2", true)
	if err != nil {
		t.Fatalf("ListInventory: %v", err)
	}
	if len(items) != 1 || items[0].MarketHashName != DefaultSeedItem.Name {
		t.Fatalf("alice items = %+v, want the default item", items)
	}

	bobAll, _ := ex.Store().ListItems(ctx, "bob", testApp, "2", false)
	bobTradable, _ := ex.Store().ListItems(ctx, "bob", testApp, "2", true)
	if len(bobAll) != 2 || len(bobTradable) != 1 {
		t.Fatalf("bob items all=%d tradable=%d, want 2 and 1", len(bobAll), len(bobTradable))
	}
	item, err := model.NewItem(bobTradable[0])
	if err != nil {
		t.Fatalf("NewItem: %v", err)
	}
	if got := item.Rarity(); got != "Strange" {
		t.Errorf("rarity = %q, want Strange", got)
	}
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	data := `
accounts:
  alice:
    - name: Key
      type: Tool
      amount: 2
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	seed, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	items := seed.Accounts["alice"]
	if len(items) != 1 || items[0].Name != "Key" || items[0].Amount != 2 {
		t.Fatalf("seed = %+v", seed)
	}

	empty, err := LoadSeed("")
	if err != nil || len(empty.Accounts) != 0 {
		t.Errorf("LoadSeed(\"\") = %+v, %v", empty, err)
	}
}

func TestOfferLifecycle(t *testing.T) {
	ctx := context.Background()
	ex := newTestExchange(t)
	alice := register(t, ex, aliceCreds)
	bob := register(t, ex, bobCreds)
	if err := (Seed{}).Apply(ctx, ex, testApp, "2", "alice", "bob"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	logOn(t, alice, aliceCreds)
	logOn(t, bob, bobCreds)

	items, err := alice.Offers().ListInventory(ctx, testApp, "2", true)
	if err != nil || len(items) != 1 {
		t.Fatalf("ListInventory = %v, %v", items, err)
	}

	offer, err := alice.Offers().CreateOffer(bobCreds.Tradelink)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	offer.SetMessage("12345")
	if err := offer.AddMyItem(items[0]); err != nil {
		t.Fatalf("AddMyItem: %v", err)
	}
	state, err := offer.Send(ctx)
	if err != nil || state != platform.OfferPending {
		t.Fatalf("Send = %v, %v; want pending", state, err)
	}

	// Wrong identity secret leaves the offer pending.
	if err := alice.Community().AcceptConfirmationForObject(ctx, "bogus", offer.ID()); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("confirm with bad secret: %v", err)
	}
	if err := alice.Community().AcceptConfirmationForObject(ctx, aliceCreds.IdentitySecret, offer.ID()); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	ev := nextEvent(t, bob)
	if ev.Kind != platform.EventNewOffer {
		t.Fatalf("bob event = %v, want NewOffer", ev.Kind)
	}
	in := ev.Offer
	if in.ID() != offer.ID() || in.Message() != "12345" || in.Partner() != alice.SteamID() {
		t.Fatalf("incoming offer id=%s msg=%s partner=%s", in.ID(), in.Message(), in.Partner())
	}
	if len(in.ItemsToGive()) != 0 || len(in.ItemsToReceive()) != 1 {
		t.Fatalf("incoming give=%d receive=%d", len(in.ItemsToGive()), len(in.ItemsToReceive()))
	}

	if err := in.Accept(ctx); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := in.Accept(ctx); !errors.Is(err, ErrOfferState) {
		t.Errorf("second Accept = %v, want ErrOfferState", err)
	}
	if err := in.Decline(ctx); !errors.Is(err, ErrOfferState) {
		t.Errorf("Decline after accept = %v, want ErrOfferState", err)
	}

	aliceLeft, _ := alice.Offers().ListInventory(ctx, testApp, "2", true)
	bobNow, _ := bob.Offers().ListInventory(ctx, testApp, "2", true)
	if len(aliceLeft) != 0 || len(bobNow) != 2 {
		t.Fatalf("after accept alice=%d bob=%d, want 0 and 2", len(aliceLeft), len(bobNow))
	}

	stored, err := ex.Store().Offer(ctx, offer.ID())
	if err != nil || stored.State != platform.OfferAccepted {
		t.Fatalf("stored offer = %+v, %v", stored, err)
	}
}

func TestCompleteOffer_MovedAssetMovesNothing(t *testing.T) {
	ctx := context.Background()
	ex := newTestExchange(t)
	register(t, ex, aliceCreds)
	register(t, ex, bobCreds)
	store := ex.Store()

	var assets []*platform.RawItem
	for _, name := range []string{"Key", "Crate"} {
		id, err := store.AddItem(ctx, "alice", platform.RawItem{AppID: testApp, ContextID: "2", MarketHashName: name, Tradable: true})
		if err != nil {
			t.Fatalf("AddItem: %v", err)
		}
		assets = append(assets, &platform.RawItem{AssetID: id})
	}

	active := func(id string, items ...*platform.RawItem) {
		t.Helper()
		row := offerRow{ID: id, Sender: "alice", Recipient: "bob", State: platform.OfferPending, Items: items}
		if err := store.CreateOffer(ctx, row); err != nil {
			t.Fatalf("CreateOffer(%s): %v", id, err)
		}
		if err := store.Transition(ctx, id, platform.OfferPending, platform.OfferActive); err != nil {
			t.Fatalf("Transition(%s): %v", id, err)
		}
	}
	active("both", assets...)
	active("second", assets[1])

	if err := store.CompleteOffer(ctx, "second"); err != nil {
		t.Fatalf("CompleteOffer(second): %v", err)
	}
	if err := store.CompleteOffer(ctx, "both"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("CompleteOffer(both) = %v, want ErrNotOwner", err)
	}

	stored, err := store.Offer(ctx, "both")
	if err != nil || stored.State != platform.OfferInvalid {
		t.Fatalf("offer both = %+v, %v; want invalid", stored, err)
	}
	aliceItems, _ := store.ListItems(ctx, "alice", testApp, "2", false)
	bobItems, _ := store.ListItems(ctx, "bob", testApp, "2", false)
	if len(aliceItems) != 1 || aliceItems[0].AssetID != assets[0].AssetID {
		t.Errorf("alice items = %v, want only %s", aliceItems, assets[0].AssetID)
	}
	if len(bobItems) != 1 {
		t.Errorf("bob items = %d, want 1", len(bobItems))
	}
}

func TestAddMyItem_RejectsMalformedItem(t *testing.T) {
	ex := newTestExchange(t)
	alice := register(t, ex, aliceCreds)
	register(t, ex, bobCreds)
	logOn(t, alice, aliceCreds)

	offer, err := alice.Offers().CreateOffer(bobCreds.Tradelink)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	for _, item := range []*platform.RawItem{nil, {MarketHashName: "Key"}} {
		err := offer.AddMyItem(item)
		if !errors.Is(err, model.ErrInvalidItem) || errors.Is(err, ErrNotOwner) {
			t.Errorf("AddMyItem(%v) = %v, want ErrInvalidItem", item, err)
		}
	}
}

func TestSend_RejectsForeignItem(t *testing.T) {
	ctx := context.Background()
	ex := newTestExchange(t)
	alice := register(t, ex, aliceCreds)
	register(t, ex, bobCreds)
	if err := (Seed{}).Apply(ctx, ex, testApp, "2", "bob"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	logOn(t, alice, aliceCreds)

	bobItems, _ := ex.Store().ListItems(ctx, "bob", testApp, "2", true)
	offer, err := alice.Offers().CreateOffer(bobCreds.Tradelink)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if err := offer.AddMyItem(bobItems[0]); err != nil {
		t.Fatalf("AddMyItem: %v", err)
	}
	if _, err := offer.Send(ctx); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("Send = %v, want ErrNotOwner", err)
	}
}

func TestDecline(t *testing.T) {
	ctx := context.Background()
	ex := newTestExchange(t)
	alice := register(t, ex, aliceCreds)
	bob := register(t, ex, bobCreds)
	if err := (Seed{}).Apply(ctx, ex, testApp, "2", "alice"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	logOn(t, alice, aliceCreds)

	items, _ := alice.Offers().ListInventory(ctx, testApp, "2", true)
	offer, _ := alice.Offers().CreateOffer(bobCreds.Tradelink)
	offer.AddMyItem(items[0])
	if _, err := offer.Send(ctx); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := alice.Community().AcceptConfirmationForObject(ctx, aliceCreds.IdentitySecret, offer.ID()); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	in := nextEvent(t, bob).Offer
	if err := in.Decline(ctx); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if err := in.Accept(ctx); !errors.Is(err, ErrOfferState) {
		t.Errorf("Accept after decline = %v, want ErrOfferState", err)
	}
	left, _ := alice.Offers().ListInventory(ctx, testApp, "2", true)
	if len(left) != 1 {
		t.Errorf("alice items = %d, want 1 (declined offer keeps items)", len(left))
	}
}

func TestExpiryScheduler_RunNow(t *testing.T) {
	ctx := context.Background()
	ex := newTestExchange(t)
	alice := register(t, ex, aliceCreds)
	register(t, ex, bobCreds)
	if err := (Seed{}).Apply(ctx, ex, testApp, "2", "alice"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	logOn(t, alice, aliceCreds)

	offer, _ := alice.Offers().CreateOffer(bobCreds.Tradelink)
	if _, err := offer.Send(ctx); err != nil {
		t.Fatalf("Send: %v", err)
	}

	fresh := NewExpiryScheduler(ex.Store(), ExpiryConfig{OfferTTL: time.Hour}, zap.NewNop())
	if n, err := fresh.RunNow(ctx); err != nil || n != 0 {
		t.Fatalf("RunNow with long ttl = %d, %v; want 0", n, err)
	}

	stale := NewExpiryScheduler(ex.Store(), ExpiryConfig{OfferTTL: time.Nanosecond}, zap.NewNop())
	time.Sleep(time.Millisecond)
	if n, err := stale.RunNow(ctx); err != nil || n != 1 {
		t.Fatalf("RunNow with tiny ttl = %d, %v; want 1", n, err)
	}

	stored, _ := ex.Store().Offer(ctx, offer.ID())
	if stored.State != platform.OfferExpired {
		t.Errorf("state = %s, want expired", stored.State)
	}

	stale.Start()
	stale.Start()
	stale.Stop()
	stale.Stop()
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	ex := newTestExchange(t)
	register(t, ex, aliceCreds)
	if err := (Seed{}).Apply(ctx, ex, testApp, "2", "alice"); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	stats, err := ex.Store().Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["driver"] != "sqlite" {
		t.Errorf("driver = %v, want sqlite", stats["driver"])
	}
	if stats["items"] != int64(1) {
		t.Errorf("items = %v, want 1", stats["items"])
	}
}
