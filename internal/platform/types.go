package platform

import "net/http"

// OfferState is the platform-side state of a trade offer.
type OfferState string

const (
	OfferPending  OfferState = "pending" // sent, waiting for mobile confirmation
	OfferActive   OfferState = "active"
	OfferAccepted OfferState = "accepted"
	OfferDeclined OfferState = "declined"
	OfferExpired  OfferState = "expired"
	OfferInvalid  OfferState = "invalid"
)

// IsTerminal reports whether the offer can no longer be accepted or declined.
func (s OfferState) IsTerminal() bool {
	switch s {
	case OfferAccepted, OfferDeclined, OfferExpired, OfferInvalid:
		return true
	}
	return false
}

// Tag is one descriptive tag attached to an inventory item.
type Tag struct {
	Category string `json:"category" yaml:"category"`
	Name     string `json:"name" yaml:"name"`
}

// RawItem is one inventory record as returned by the platform.
type RawItem struct {
	AssetID        string `json:"assetid,omitempty" yaml:"assetid"`
	ID             string `json:"id,omitempty" yaml:"id"`
	ContextID      string `json:"contextid,omitempty" yaml:"contextid"`
	AppID          int    `json:"appid,omitempty" yaml:"appid"`
	Amount         int    `json:"amount,omitempty" yaml:"amount"`
	MarketHashName string `json:"market_hash_name,omitempty" yaml:"market_hash_name"`
	Type           string `json:"type,omitempty" yaml:"type"`
	Tags           []Tag  `json:"tags,omitempty" yaml:"tags"`
	Tradable       bool   `json:"tradable" yaml:"tradable"`
}

// EventKind identifies a connection or offer event.
type EventKind int

const (
	EventLoggedOn EventKind = iota + 1
	EventWebSession
	EventError
	EventDisconnected
	EventNewOffer
)

func (k EventKind) String() string {
	switch k {
	case EventLoggedOn:
		return "logged_on"
	case EventWebSession:
		return "web_session"
	case EventError:
		return "error"
	case EventDisconnected:
		return "disconnected"
	case EventNewOffer:
		return "new_offer"
	}
	return "unknown"
}

// Event is delivered on Client.Events. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind

	// EventWebSession
	SessionID string
	Cookies   []*http.Cookie

	// EventNewOffer
	Offer IncomingOffer

	// EventError, EventDisconnected
	Err     error
	Message string
}
