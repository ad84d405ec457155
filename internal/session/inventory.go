package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"steam-trade-farm/internal/cache"
	"steam-trade-farm/internal/model"

	"go.uber.org/zap"
)

// Snapshot is the cached summary of one account's last inventory fetch.
type Snapshot struct {
	Account   string              `json:"account"`
	AppID     int                 `json:"app_id"`
	Count     int                 `json:"count"`
	Items     []model.ItemDetails `json:"items"`
	FetchedAt time.Time           `json:"fetched_at"`
}

// SnapshotKey is the cache key of an account's inventory snapshot.
func SnapshotKey(username string) string {
	return "farm:inventory:" + username
}

// LoadSnapshot reads an account's snapshot from c. It returns nil, nil when
// nothing has been mirrored yet.
func LoadSnapshot(ctx context.Context, c cache.Cache, username string) (*Snapshot, error) {
	data, err := c.Get(ctx, SnapshotKey(username))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode inventory snapshot: %w", err)
	}
	return &snap, nil
}

// FetchInventory replaces the cached snapshot with the account's tradable
// items for appID. An empty inventory is not an error. Transport failures are
// returned wrapped in model.ErrInventoryFetch and are not retried here.
func (s *Session) FetchInventory(ctx context.Context, appID int) ([]*model.Item, error) {
	s.log.Info("fetching inventory", zap.Int("app_id", appID), zap.String("context_id", s.contextID))

	records, err := s.offers.ListInventory(ctx, appID, s.contextID, true)
	if err != nil {
		s.log.Error("error fetching inventory", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", model.ErrInventoryFetch, err)
	}

	items := make([]*model.Item, 0, len(records))
	for _, raw := range records {
		item, err := model.NewItem(raw)
		if err != nil {
			s.log.Warn("skipping inventory record", zap.Error(err))
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		s.log.Info("empty inventory", zap.Int("app_id", appID))
	} else {
		s.log.Info("found items in inventory", zap.Int("count", len(items)))
	}

	now := time.Now()
	s.mu.Lock()
	s.inventory = items
	s.mu.Unlock()

	s.mirror(ctx, appID, items, now)
	return items, nil
}

// FirstAvailableItem fetches the inventory and returns its first item in
// transport order.
func (s *Session) FirstAvailableItem(ctx context.Context, appID int) (*model.Item, error) {
	items, err := s.FetchInventory(ctx, appID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: app %d", model.ErrEmptyInventory, appID)
	}
	return items[0], nil
}

func (s *Session) mirror(ctx context.Context, appID int, items []*model.Item, at time.Time) {
	if s.cache == nil {
		return
	}

	snap := Snapshot{
		Account:   s.creds.Username,
		AppID:     appID,
		Count:     len(items),
		Items:     make([]model.ItemDetails, len(items)),
		FetchedAt: at,
	}
	for i, item := range items {
		snap.Items[i] = item.Details()
	}

	data, err := json.Marshal(snap)
	if err != nil {
		s.log.Warn("failed to encode inventory snapshot", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, SnapshotKey(s.creds.Username), data, s.snapshotTTL); err != nil {
		s.log.Warn("failed to mirror inventory snapshot", zap.Error(err))
	}
}
