package session

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/aroranishank/tms-frontend/internal/model"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// Cache persists the current {token, user} pair across runs. Corrupt storage
// never blocks startup: an unreadable file or row is discarded and the
// client proceeds logged out.
type Cache struct {
	db *sql.DB

	mu         sync.RWMutex
	token      string
	user       *model.User
	adminKnown bool
}

func OpenCache(path string) (*Cache, error) {
	if path == "" {
		return nil, fmt.Errorf("session path is required")
	}

	db, err := openSessionDB(path)
	if err != nil {
		if removeErr := os.Remove(path); removeErr != nil {
			return nil, err
		}
		db, err = openSessionDB(path)
		if err != nil {
			return nil, err
		}
	}

	cache := &Cache{db: db}
	cache.loadRow(context.Background())
	return cache, nil
}

func openSessionDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := applySchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	return nil
}

func (c *Cache) loadRow(ctx context.Context) {
	var token, userJSON string
	err := c.db.QueryRowContext(ctx, "SELECT token, user_json FROM session WHERE id = 1").Scan(&token, &userJSON)
	if err == sql.ErrNoRows {
		return
	}
	if err != nil {
		_ = c.Clear(ctx)
		return
	}

	user, adminKnown, err := decodeStoredUser([]byte(userJSON))
	if err != nil {
		_ = c.Clear(ctx)
		return
	}

	c.token = token
	c.user = user
	c.adminKnown = adminKnown
}

// decodeStoredUser also reports whether the stored copy carries the is_admin
// field; sessions persisted before that field existed need a refresh.
func decodeStoredUser(data []byte) (*model.User, bool, error) {
	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, false, err
	}

	var probe struct {
		IsAdmin *bool `json:"is_admin"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, false, err
	}

	return &user, probe.IsAdmin != nil, nil
}

// Token is read by the request builder on every outbound call.
func (c *Cache) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Cache) Current() (string, *model.User) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.user
}

func (c *Cache) AdminKnown() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.adminKnown
}

// Stage sets the in-memory token without persisting it, so login can probe
// /auth/me with the fresh token before committing anything to disk.
func (c *Cache) Stage(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Save persists a canonical server copy of the session.
func (c *Cache) Save(ctx context.Context, token string, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO session (id, token, user_json, updated_at) VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET token = excluded.token, user_json = excluded.user_json, updated_at = CURRENT_TIMESTAMP`,
		token, string(data))
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	c.mu.Lock()
	c.token = token
	c.user = user
	c.adminKnown = true
	c.mu.Unlock()
	return nil
}

// Clear wipes the in-memory state first so the process is logged out even
// when the disk write fails.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.token = ""
	c.user = nil
	c.adminKnown = false
	c.mu.Unlock()

	if _, err := c.db.ExecContext(ctx, "DELETE FROM session"); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}
