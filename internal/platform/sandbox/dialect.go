package sandbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// dialect holds the statements that differ between the supported databases.
// Every other query is shared; both drivers use ? placeholders.
type dialect struct {
	name          string
	schema        []string
	upsertAccount string
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			username TEXT PRIMARY KEY,
			steam_id TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			shared_secret TEXT NOT NULL,
			identity_secret TEXT NOT NULL,
			tradelink TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			asset_id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner TEXT NOT NULL REFERENCES accounts(username),
			app_id INTEGER NOT NULL,
			context_id TEXT NOT NULL,
			market_hash_name TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			amount INTEGER NOT NULL DEFAULT 1,
			tags_json TEXT NOT NULL DEFAULT '[]',
			tradable INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_owner ON items(owner, app_id, context_id)`,
		`CREATE TABLE IF NOT EXISTS offers (
			id TEXT PRIMARY KEY,
			sender TEXT NOT NULL REFERENCES accounts(username),
			recipient TEXT NOT NULL REFERENCES accounts(username),
			message TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_offers_state ON offers(state, created_at)`,
		`CREATE TABLE IF NOT EXISTS offer_items (
			offer_id TEXT NOT NULL REFERENCES offers(id),
			asset_id INTEGER NOT NULL REFERENCES items(asset_id),
			PRIMARY KEY (offer_id, asset_id)
		)`,
	},
	upsertAccount: `
		INSERT INTO accounts (username, steam_id, password_hash, shared_secret, identity_secret, tradelink)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			password_hash = excluded.password_hash,
			shared_secret = excluded.shared_secret,
			identity_secret = excluded.identity_secret,
			tradelink = excluded.tradelink`,
}

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			username VARCHAR(64) PRIMARY KEY,
			steam_id VARCHAR(32) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			shared_secret VARCHAR(255) NOT NULL,
			identity_secret VARCHAR(255) NOT NULL,
			tradelink VARCHAR(512) NOT NULL,
			UNIQUE KEY uq_accounts_tradelink (tradelink)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS items (
			asset_id BIGINT PRIMARY KEY AUTO_INCREMENT,
			owner VARCHAR(64) NOT NULL,
			app_id INT NOT NULL,
			context_id VARCHAR(32) NOT NULL,
			market_hash_name VARCHAR(255) NOT NULL,
			type VARCHAR(255) NOT NULL DEFAULT '',
			amount INT NOT NULL DEFAULT 1,
			tags_json TEXT NOT NULL,
			tradable BOOLEAN NOT NULL DEFAULT TRUE,
			INDEX idx_items_owner (owner, app_id, context_id),
			FOREIGN KEY (owner) REFERENCES accounts(username)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS offers (
			id VARCHAR(36) PRIMARY KEY,
			sender VARCHAR(64) NOT NULL,
			recipient VARCHAR(64) NOT NULL,
			message TEXT NOT NULL,
			state VARCHAR(16) NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			INDEX idx_offers_state (state, created_at),
			FOREIGN KEY (sender) REFERENCES accounts(username),
			FOREIGN KEY (recipient) REFERENCES accounts(username)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS offer_items (
			offer_id VARCHAR(36) NOT NULL,
			asset_id BIGINT NOT NULL,
			PRIMARY KEY (offer_id, asset_id),
			FOREIGN KEY (offer_id) REFERENCES offers(id),
			FOREIGN KEY (asset_id) REFERENCES items(asset_id)
		) ENGINE=InnoDB`,
	},
	upsertAccount: `
		INSERT INTO accounts (username, steam_id, password_hash, shared_secret, identity_secret, tradelink)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			password_hash = VALUES(password_hash),
			shared_secret = VALUES(shared_secret),
			identity_secret = VALUES(identity_secret),
			tradelink = VALUES(tradelink)`,
}

func newStore(db *sql.DB, d dialect) (*Store, error) {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create %s tables: %w", d.name, err)
		}
	}
	return &Store{db: db, dialect: d}, nil
}

// OpenMySQLStore connects to a MySQL database and creates the sandbox tables
// in it. The dsn is in go-sql-driver/mysql form.
func OpenMySQLStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}
	return newStore(db, mysqlDialect)
}

// Driver names the database behind the store.
func (s *Store) Driver() string {
	return s.dialect.name
}
