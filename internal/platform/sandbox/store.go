package sandbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"steam-trade-farm/internal/platform"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var (
	ErrUnknownAccount = errors.New("unknown account")
	ErrUnknownOffer   = errors.New("unknown offer")
	ErrNotOwner       = errors.New("item not owned by sender")
	ErrOfferState     = errors.New("offer is not in a state that allows this action")
)

// account is one registered sandbox account.
type account struct {
	Username       string
	SteamID        string
	PasswordHash   string
	SharedSecret   string
	IdentitySecret string
	Tradelink      string
}

// offerRow is one stored trade offer.
type offerRow struct {
	ID        string
	Sender    string
	Recipient string
	Message   string
	State     platform.OfferState
	CreatedAt time.Time
	Items     []*platform.RawItem
}

// Store persists sandbox accounts, items and offers in SQLite or MySQL.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// OpenStore opens (creating if needed) the sandbox database at path.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty sandbox db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return newStore(db, sqliteDialect)
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// UpsertAccount inserts or replaces an account.
func (s *Store) UpsertAccount(ctx context.Context, a account) error {
	_, err := s.db.ExecContext(ctx, s.dialect.upsertAccount,
		a.Username, a.SteamID, a.PasswordHash, a.SharedSecret, a.IdentitySecret, a.Tradelink)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", a.Username, err)
	}
	return nil
}

// Account loads an account by login name.
func (s *Store) Account(ctx context.Context, username string) (*account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, `
		SELECT username, steam_id, password_hash, shared_secret, identity_secret, tradelink
		FROM accounts WHERE username = ?`, username))
}

// AccountByTradelink resolves a receive address to its account.
func (s *Store) AccountByTradelink(ctx context.Context, tradelink string) (*account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, `
		SELECT username, steam_id, password_hash, shared_secret, identity_secret, tradelink
		FROM accounts WHERE tradelink = ?`, tradelink))
}

func (s *Store) scanAccount(row *sql.Row) (*account, error) {
	var a account
	err := row.Scan(&a.Username, &a.SteamID, &a.PasswordHash, &a.SharedSecret, &a.IdentitySecret, &a.Tradelink)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownAccount
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

// CountAccounts returns the number of registered accounts.
func (s *Store) CountAccounts(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n)
	return n, err
}

// AddItem creates an item owned by owner and returns its asset id.
func (s *Store) AddItem(ctx context.Context, owner string, item platform.RawItem) (string, error) {
	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return "", err
	}
	if item.Amount <= 0 {
		item.Amount = 1
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO items (owner, app_id, context_id, market_hash_name, type, amount, tags_json, tradable)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		owner, item.AppID, item.ContextID, item.MarketHashName, item.Type, item.Amount, string(tags), item.Tradable)
	if err != nil {
		return "", fmt.Errorf("failed to add item for %s: %w", owner, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// ListItems returns owner's items in asset order.
func (s *Store) ListItems(ctx context.Context, owner string, appID int, contextID string, tradableOnly bool) ([]*platform.RawItem, error) {
	query := `
		SELECT asset_id, app_id, context_id, market_hash_name, type, amount, tags_json, tradable
		FROM items WHERE owner = ? AND app_id = ? AND context_id = ?`
	if tradableOnly {
		query += ` AND tradable = 1`
	}
	query += ` ORDER BY asset_id`

	rows, err := s.db.QueryContext(ctx, query, owner, appID, contextID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*platform.RawItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*platform.RawItem, error) {
	var (
		assetID int64
		tags    string
		item    platform.RawItem
	)
	if err := row.Scan(&assetID, &item.AppID, &item.ContextID, &item.MarketHashName,
		&item.Type, &item.Amount, &tags, &item.Tradable); err != nil {
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags of item %d: %w", assetID, err)
	}
	item.AssetID = strconv.FormatInt(assetID, 10)
	item.ID = item.AssetID
	return &item, nil
}

// CreateOffer stores a pending offer after checking the sender owns every item.
func (s *Store) CreateOffer(ctx context.Context, o offerRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixNano()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO offers (id, sender, recipient, message, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Sender, o.Recipient, o.Message, string(o.State), now, now); err != nil {
		return fmt.Errorf("failed to insert offer: %w", err)
	}

	for _, item := range o.Items {
		assetID, err := strconv.ParseInt(item.AssetID, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: asset %q", ErrNotOwner, item.AssetID)
		}
		var owner string
		err = tx.QueryRowContext(ctx, `SELECT owner FROM items WHERE asset_id = ?`, assetID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != o.Sender) {
			return fmt.Errorf("%w: asset %s", ErrNotOwner, item.AssetID)
		}
		if err != nil {
			return fmt.Errorf("failed to check item owner: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO offer_items (offer_id, asset_id) VALUES (?, ?)`, o.ID, assetID); err != nil {
			return fmt.Errorf("failed to attach asset %s: %w", item.AssetID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Offer loads an offer with its items.
func (s *Store) Offer(ctx context.Context, id string) (*offerRow, error) {
	var (
		o       offerRow
		state   string
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sender, recipient, message, state, created_at FROM offers WHERE id = ?`, id).
		Scan(&o.ID, &o.Sender, &o.Recipient, &o.Message, &state, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownOffer
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	o.State = platform.OfferState(state)
	o.CreatedAt = time.Unix(0, created).UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.asset_id, i.app_id, i.context_id, i.market_hash_name, i.type, i.amount, i.tags_json, i.tradable
		FROM offer_items oi JOIN items i ON i.asset_id = oi.asset_id
		WHERE oi.offer_id = ? ORDER BY i.asset_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get offer items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	return &o, rows.Err()
}

// Transition moves an offer from one state to another. It fails with
// ErrOfferState when the offer is not currently in from.
func (s *Store) Transition(ctx context.Context, id string, from, to platform.OfferState) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE offers SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		string(to), time.Now().UnixNano(), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to update offer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s is not %s", ErrOfferState, id, from)
	}
	return nil
}

// CompleteOffer accepts an active offer and moves its items to the recipient.
func (s *Store) CompleteOffer(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var sender, recipient string
	err = tx.QueryRowContext(ctx, `
		SELECT sender, recipient FROM offers WHERE id = ? AND state = ?`, id, string(platform.OfferActive)).
		Scan(&sender, &recipient)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s is not active", ErrOfferState, id)
	}
	if err != nil {
		return fmt.Errorf("failed to get offer: %w", err)
	}

	var want, owned int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM offer_items WHERE offer_id = ?`, id).Scan(&want); err != nil {
		return fmt.Errorf("failed to count offer items: %w", err)
	}
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM items
		WHERE owner = ? AND asset_id IN (SELECT asset_id FROM offer_items WHERE offer_id = ?)`,
		sender, id).Scan(&owned)
	if err != nil {
		return fmt.Errorf("failed to check item owners: %w", err)
	}
	if owned != want {
		// Items left the sender's inventory since the offer was made; nothing moves.
		if _, err := tx.ExecContext(ctx, `UPDATE offers SET state = ?, updated_at = ? WHERE id = ?`,
			string(platform.OfferInvalid), time.Now().UnixNano(), id); err != nil {
			return fmt.Errorf("failed to invalidate offer: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return fmt.Errorf("%w: asset moved before acceptance", ErrNotOwner)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE items SET owner = ?
		WHERE owner = ? AND asset_id IN (SELECT asset_id FROM offer_items WHERE offer_id = ?)`,
		recipient, sender, id); err != nil {
		return fmt.Errorf("failed to transfer items: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE offers SET state = ?, updated_at = ? WHERE id = ?`,
		string(platform.OfferAccepted), time.Now().UnixNano(), id); err != nil {
		return fmt.Errorf("failed to accept offer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ExpireOffers marks pending and active offers older than threshold as expired.
func (s *Store) ExpireOffers(ctx context.Context, threshold time.Duration) (int64, error) {
	now := time.Now()
	cutoff := now.Add(-threshold).UnixNano()
	res, err := s.db.ExecContext(ctx, `
		UPDATE offers SET state = ?, updated_at = ?
		WHERE state IN (?, ?) AND created_at < ?`,
		string(platform.OfferExpired), now.UnixNano(),
		string(platform.OfferPending), string(platform.OfferActive), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire offers: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns counters for the status endpoint.
func (s *Store) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"driver": s.dialect.name}

	var items int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&items); err != nil {
		return nil, err
	}
	stats["items"] = items

	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM offers GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offers := make(map[string]int64)
	for rows.Next() {
		var (
			state string
			n     int64
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		offers[state] = n
	}
	stats["offers"] = offers
	return stats, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
