package sandbox

import (
	"context"
	"fmt"

	"steam-trade-farm/internal/model"
	"steam-trade-farm/internal/platform"
	"steam-trade-farm/pkg/uid"

	"go.uber.org/zap"
)

// outgoingOffer is built by the sender and stored on Send.
type outgoingOffer struct {
	client    *Client
	tradelink string
	id        string
	message   string
	items     []*platform.RawItem
}

func (o *outgoingOffer) ID() string { return o.id }

func (o *outgoingOffer) SetMessage(message string) { o.message = message }

func (o *outgoingOffer) AddMyItem(item *platform.RawItem) error {
	if item == nil || item.AssetID == "" {
		return fmt.Errorf("%w: item has no asset id", model.ErrInvalidItem)
	}
	for _, existing := range o.items {
		if existing.AssetID == item.AssetID {
			return fmt.Errorf("asset %s already in offer", item.AssetID)
		}
	}
	o.items = append(o.items, item)
	return nil
}

// Send stores the offer as pending; the sender must confirm it before the
// recipient sees it.
func (o *outgoingOffer) Send(ctx context.Context) (platform.OfferState, error) {
	if o.id != "" {
		return "", fmt.Errorf("offer %s already sent", o.id)
	}
	if err := o.client.requireOfferSession(); err != nil {
		return "", err
	}

	ex := o.client.exchange
	recipient, err := ex.store.AccountByTradelink(ctx, o.tradelink)
	if err != nil {
		return "", fmt.Errorf("resolve trade link: %w", err)
	}
	if recipient.Username == o.client.username {
		return "", fmt.Errorf("cannot send an offer to yourself")
	}

	id := uid.New()
	err = ex.store.CreateOffer(ctx, offerRow{
		ID:        id,
		Sender:    o.client.username,
		Recipient: recipient.Username,
		Message:   o.message,
		State:     platform.OfferPending,
		Items:     o.items,
	})
	if err != nil {
		return "", err
	}
	o.id = id

	ex.log.Info("offer created",
		zap.String("offer_id", id),
		zap.String("from", o.client.username),
		zap.String("to", recipient.Username),
		zap.Int("items", len(o.items)))
	return platform.OfferPending, nil
}

// incomingOffer is the recipient's handle on an active offer.
type incomingOffer struct {
	exchange *Exchange
	id       string
	partner  string
	message  string
	receive  []*platform.RawItem
}

func newIncomingOffer(ex *Exchange, row *offerRow, partnerSteamID string) *incomingOffer {
	return &incomingOffer{
		exchange: ex,
		id:       row.ID,
		partner:  partnerSteamID,
		message:  row.Message,
		receive:  row.Items,
	}
}

func (o *incomingOffer) ID() string      { return o.id }
func (o *incomingOffer) Partner() string { return o.partner }
func (o *incomingOffer) Message() string { return o.message }

// ItemsToGive is always empty: sandbox offers never request items.
func (o *incomingOffer) ItemsToGive() []*platform.RawItem { return nil }

func (o *incomingOffer) ItemsToReceive() []*platform.RawItem { return o.receive }

func (o *incomingOffer) Accept(ctx context.Context) error {
	if err := o.exchange.store.CompleteOffer(ctx, o.id); err != nil {
		return err
	}
	o.exchange.log.Info("offer accepted", zap.String("offer_id", o.id))
	return nil
}

func (o *incomingOffer) Decline(ctx context.Context) error {
	if err := o.exchange.store.Transition(ctx, o.id, platform.OfferActive, platform.OfferDeclined); err != nil {
		return err
	}
	o.exchange.log.Info("offer declined", zap.String("offer_id", o.id))
	return nil
}
