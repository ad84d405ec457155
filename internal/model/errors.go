package model

import "errors"

// Error kinds. Call sites wrap the underlying cause next to the kind, e.g.
// fmt.Errorf("%w: %w", ErrSendOffer, err), so both stay visible to errors.Is.
var (
	ErrInvalidItem           = errors.New("invalid inventory item")
	ErrInvalidOffer          = errors.New("invalid trade offer")
	ErrInvalidOfferParams    = errors.New("invalid parameters for send offer")
	ErrInventoryFetch        = errors.New("failed to fetch inventory")
	ErrEmptyInventory        = errors.New("inventory is empty")
	ErrItemAttach            = errors.New("failed to add item to offer")
	ErrSendOffer             = errors.New("failed to send offer")
	ErrAcceptOffer           = errors.New("failed to accept offer")
	ErrConfirmation          = errors.New("mobile confirmation failed")
	ErrIncompleteCredentials = errors.New("incomplete credentials")
)
