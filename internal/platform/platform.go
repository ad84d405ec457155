// Package platform defines the contracts of the trading platform services the
// farm depends on: log-on, web session events, inventory listing, trade
// offers and mobile confirmations.
package platform

import (
	"context"
	"net/http"
)

// LogOnDetails holds the credentials passed to Client.LogOn.
type LogOnDetails struct {
	AccountName   string
	Password      string
	TwoFactorCode string
}

// Client is the connection to the platform for one account.
// LogOn only starts authentication; its outcome arrives on Events.
type Client interface {
	LogOn(ctx context.Context, details LogOnDetails) error
	Events() <-chan Event
}

// CookieSetter accepts the cookies of an established web session.
type CookieSetter interface {
	SetCookies(cookies []*http.Cookie) error
}

// OfferManager lists inventories and creates trade offers.
type OfferManager interface {
	CookieSetter

	// ListInventory returns the account's items in the given app and context.
	ListInventory(ctx context.Context, appID int, contextID string, tradableOnly bool) ([]*RawItem, error)

	// CreateOffer starts a new, unsent offer to the owner of receiveAddress.
	CreateOffer(receiveAddress string) (OutgoingOffer, error)
}

// OutgoingOffer is an offer being built by the local account.
type OutgoingOffer interface {
	// ID is empty until the offer has been sent.
	ID() string
	SetMessage(message string)
	AddMyItem(item *RawItem) error
	Send(ctx context.Context) (OfferState, error)
}

// IncomingOffer is an offer received from another account.
type IncomingOffer interface {
	ID() string
	Partner() string
	Message() string
	ItemsToGive() []*RawItem
	ItemsToReceive() []*RawItem
	Accept(ctx context.Context) error
	Decline(ctx context.Context) error
}

// Community approves mobile confirmations.
type Community interface {
	CookieSetter
	AcceptConfirmationForObject(ctx context.Context, identitySecret, objectID string) error
}
