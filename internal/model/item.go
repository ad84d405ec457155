package model

import (
	"steam-trade-farm/internal/platform"
)

const (
	// DefaultContextID is the inventory context used when a record has none.
	DefaultContextID = "2"

	unnamedItem    = "Unnamed item"
	unknownType    = "Unknown"
	commonRarity   = "Common"
	rarityCategory = "Rarity"
)

// Item is a read-only view over one inventory record.
type Item struct {
	raw *platform.RawItem
}

// ItemDetails is a loggable summary of an Item.
type ItemDetails struct {
	Name    string `json:"name"`
	AssetID string `json:"asset_id"`
	AppID   int    `json:"app_id"`
	Type    string `json:"type"`
	Rarity  string `json:"rarity"`
	Amount  int    `json:"amount"`
}

// NewItem wraps a raw inventory record. It fails only when the record is nil;
// incomplete records are reported by IsValid.
func NewItem(raw *platform.RawItem) (*Item, error) {
	if raw == nil {
		return nil, ErrInvalidItem
	}
	return &Item{raw: raw}, nil
}

// Name returns the market hash name.
func (i *Item) Name() string {
	if i.raw.MarketHashName == "" {
		return unnamedItem
	}
	return i.raw.MarketHashName
}

// AssetID returns the asset id, falling back to the legacy id field.
func (i *Item) AssetID() string {
	if i.raw.AssetID != "" {
		return i.raw.AssetID
	}
	return i.raw.ID
}

func (i *Item) ContextID() string {
	if i.raw.ContextID == "" {
		return DefaultContextID
	}
	return i.raw.ContextID
}

func (i *Item) AppID() int {
	return i.raw.AppID
}

func (i *Item) Amount() int {
	if i.raw.Amount <= 0 {
		return 1
	}
	return i.raw.Amount
}

func (i *Item) Type() string {
	if i.raw.Type == "" {
		return unknownType
	}
	return i.raw.Type
}

// Rarity returns the name of the first "Rarity" tag, or "Common".
func (i *Item) Rarity() string {
	for _, tag := range i.raw.Tags {
		if tag.Category == rarityCategory && tag.Name != "" {
			return tag.Name
		}
	}
	return commonRarity
}

// Raw returns the record exactly as the platform sent it; offers need it verbatim.
func (i *Item) Raw() *platform.RawItem {
	return i.raw
}

// IsValid reports whether the record carries an asset id, a name and an app id.
func (i *Item) IsValid() bool {
	return i.AssetID() != "" && i.raw.MarketHashName != "" && i.raw.AppID != 0
}

func (i *Item) Details() ItemDetails {
	return ItemDetails{
		Name:    i.Name(),
		AssetID: i.AssetID(),
		AppID:   i.AppID(),
		Type:    i.Type(),
		Rarity:  i.Rarity(),
		Amount:  i.Amount(),
	}
}
