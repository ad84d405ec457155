package model

import (
	"steam-trade-farm/internal/platform"
)

// InboundOffer is a read-only view over an incoming trade offer.
//
// The fields are copied from the offer when the view is built and the safety
// verdict is computed once at that point, so accepting or declining the
// underlying offer later never changes what IsSafe reports.
type InboundOffer struct {
	id             string
	partner        string
	message        string
	itemsToGive    []*platform.RawItem
	itemsToReceive []*platform.RawItem
	safe           bool
}

// OfferDetails is a loggable summary of an InboundOffer.
type OfferDetails struct {
	ID             string `json:"id"`
	Partner        string `json:"partner"`
	Message        string `json:"message"`
	ItemsToGive    int    `json:"items_to_give"`
	ItemsToReceive int    `json:"items_to_receive"`
	IsSafe         bool   `json:"is_safe"`
}

// NewInboundOffer snapshots offer and evaluates it against code.
func NewInboundOffer(offer platform.IncomingOffer, code SecurityCode) (*InboundOffer, error) {
	if offer == nil {
		return nil, ErrInvalidOffer
	}
	if code.IsZero() {
		return nil, ErrInvalidOffer
	}

	o := &InboundOffer{
		id:             offer.ID(),
		partner:        offer.Partner(),
		message:        offer.Message(),
		itemsToGive:    append([]*platform.RawItem(nil), offer.ItemsToGive()...),
		itemsToReceive: append([]*platform.RawItem(nil), offer.ItemsToReceive()...),
	}
	o.safe = IsSafeTrade(o.message, len(o.itemsToGive), code)
	return o, nil
}

// IsSafeTrade is the acceptance rule: the message is exactly the security code
// and the local account gives nothing away.
func IsSafeTrade(message string, itemsToGive int, code SecurityCode) bool {
	return message == code.String() && itemsToGive == 0
}

func (o *InboundOffer) ID() string      { return o.id }
func (o *InboundOffer) Partner() string { return o.partner }
func (o *InboundOffer) Message() string { return o.message }

// ItemsToGive lists the items the local account would give up.
func (o *InboundOffer) ItemsToGive() []*platform.RawItem {
	return o.itemsToGive
}

// ItemsToReceive lists the items the local account would receive.
func (o *InboundOffer) ItemsToReceive() []*platform.RawItem {
	return o.itemsToReceive
}

func (o *InboundOffer) IsSafe() bool { return o.safe }

func (o *InboundOffer) Details() OfferDetails {
	return OfferDetails{
		ID:             o.id,
		Partner:        o.partner,
		Message:        o.message,
		ItemsToGive:    len(o.itemsToGive),
		ItemsToReceive: len(o.itemsToReceive),
		IsSafe:         o.safe,
	}
}
