package sandbox

import (
	"context"
	"fmt"
	"os"

	"steam-trade-farm/internal/model"
	"steam-trade-farm/internal/platform"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SeedItem describes one item handed to an account at startup.
type SeedItem struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Amount     int    `yaml:"amount"`
	Rarity     string `yaml:"rarity"`
	Untradable bool   `yaml:"untradable"`
}

// Seed maps account login names to their starting items.
type Seed struct {
	Accounts map[string][]SeedItem `yaml:"accounts"`
}

// LoadSeed reads a YAML seed file. An empty path yields an empty seed.
func LoadSeed(path string) (Seed, error) {
	var s Seed
	if path == "" {
		return s, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return s, nil
}

// DefaultSeedItem is given to accounts that own nothing and have no seed entry.
var DefaultSeedItem = SeedItem{Name: "Mann Co. Supply Crate Key", Type: "Tool", Rarity: "Unique"}

// Apply gives every listed account its seed items, and the default item to
// any of accounts that has an empty inventory in appID afterwards. Accounts
// that already own items are left alone so restarts do not mint new ones.
func (s Seed) Apply(ctx context.Context, ex *Exchange, appID int, contextID string, accounts ...string) error {
	if contextID == "" {
		contextID = model.DefaultContextID
	}

	for _, username := range accounts {
		existing, err := ex.store.ListItems(ctx, username, appID, contextID, false)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			continue
		}

		items := s.Accounts[username]
		if len(items) == 0 {
			items = []SeedItem{DefaultSeedItem}
		}
		for _, it := range items {
			id, err := ex.store.AddItem(ctx, username, it.raw(appID, contextID))
			if err != nil {
				return err
			}
			ex.log.Debug("seeded item",
				zap.String("account", username),
				zap.String("asset_id", id),
				zap.String("name", it.Name))
		}
		ex.log.Info("seeded inventory", zap.String("account", username), zap.Int("items", len(items)))
	}
	return nil
}

func (it SeedItem) raw(appID int, contextID string) platform.RawItem {
	raw := platform.RawItem{
		AppID:          appID,
		ContextID:      contextID,
		Amount:         it.Amount,
		MarketHashName: it.Name,
		Type:           it.Type,
		Tradable:       !it.Untradable,
	}
	if it.Rarity != "" {
		raw.Tags = append(raw.Tags, platform.Tag{Category: "Rarity", Name: it.Rarity})
	}
	if raw.Amount <= 0 {
		raw.Amount = 1
	}
	return raw
}

