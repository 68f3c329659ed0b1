// Package sqlite provides a SQLite implementation of the memory item store.
//
// SQLite is a lightweight, file-based database suitable for local development
// and small-scale deployments. Embeddings are stored as JSON strings in TEXT
// fields; similarity scoring happens in the caller.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/crewmind/crewmind-go/pkg/storage"
)

// Client implements storage.Store using SQLite as the backend.
type Client struct {
	db        *sql.DB
	tableName string
}

// Config contains configuration for creating a SQLite store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TableName is the name of the table to use. Defaults to "memories".
	TableName string
}

// NewClient creates a new SQLite store client.
//
// Parameters:
//   - cfg: Configuration containing database path and table name
//
// Returns:
//   - *Client: The SQLite client instance
//   - error: Error if database connection or table creation fails
func NewClient(cfg *Config) (*Client, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "memories"
	}

	client := &Client{
		db:        db,
		tableName: tableName,
	}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table structure.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			source TEXT,
			relevance REAL NOT NULL DEFAULT 0.5,
			metadata TEXT,
			embedding TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_user ON %s(user_id, relevance)
	`, c.tableName, c.tableName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Insert inserts a memory item.
func (c *Client) Insert(ctx context.Context, item *storage.Item) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, user_id, type, content, source, relevance, metadata, embedding, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.tableName)

	embeddingJSON, metadataJSON, err := encodeFields(item)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	_, err = c.db.ExecContext(ctx, query,
		item.ID,
		item.UserID,
		item.Type,
		item.Content,
		item.Source,
		item.Relevance,
		metadataJSON,
		embeddingJSON,
		item.CreatedAt,
		item.UpdatedAt,
		item.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	return nil
}

// Get retrieves a memory item by id, scoped to the given user.
func (c *Client) Get(ctx context.Context, userID string, id int64) (*storage.Item, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, type, content, source, relevance, metadata, embedding,
		       created_at, updated_at, expires_at
		FROM %s
		WHERE id = ? AND user_id = ?
	`, c.tableName)

	item, err := scanItem(c.db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	return item, nil
}

// Update replaces an item's mutable fields, scoped to the item's user.
func (c *Client) Update(ctx context.Context, item *storage.Item) error {
	embeddingJSON, metadataJSON, err := encodeFields(item)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET content = ?, relevance = ?, metadata = ?, embedding = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, c.tableName)

	result, err := c.db.ExecContext(ctx, query,
		item.Content, item.Relevance, metadataJSON, embeddingJSON, item.UpdatedAt,
		item.ID, item.UserID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// Delete deletes a memory item by id, scoped to the given user.
func (c *Client) Delete(ctx context.Context, userID string, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND user_id = ?", c.tableName)

	result, err := c.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// DeleteAll deletes every item belonging to the given user.
func (c *Client) DeleteAll(ctx context.Context, userID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = ?", c.tableName)

	if _, err := c.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("DeleteAll: %w", err)
	}

	return nil
}

// List retrieves items matching the given filters, ordered by
// relevance DESC, created_at DESC.
func (c *Client) List(ctx context.Context, userID string, opts *storage.ListOptions) ([]*storage.Item, error) {
	if opts == nil {
		opts = &storage.ListOptions{}
	}

	conditions := []string{"user_id = ?", "(expires_at IS NULL OR expires_at > ?)"}
	args := []interface{}{userID, time.Now()}

	if opts.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, opts.Type)
	}
	if opts.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, opts.Source)
	}
	if opts.MinRelevance > 0 {
		conditions = append(conditions, "relevance >= ?")
		args = append(args, opts.MinRelevance)
	}
	if opts.Contains != "" {
		conditions = append(conditions, "content LIKE ?")
		args = append(args, "%"+opts.Contains+"%")
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, type, content, source, relevance, metadata, embedding,
		       created_at, updated_at, expires_at
		FROM %s
		WHERE %s
		ORDER BY relevance DESC, created_at DESC
	`, c.tableName, strings.Join(conditions, " AND "))

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	return c.queryItems(ctx, query, args...)
}

// ListEmbedded retrieves the user's most recently created embedded items.
func (c *Client) ListEmbedded(ctx context.Context, userID string, limit int) ([]*storage.Item, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, type, content, source, relevance, metadata, embedding,
		       created_at, updated_at, expires_at
		FROM %s
		WHERE user_id = ? AND embedding IS NOT NULL AND embedding != ''
		  AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY created_at DESC
		LIMIT ?
	`, c.tableName)

	return c.queryItems(ctx, query, userID, time.Now(), limit)
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *Client) queryItems(ctx context.Context, query string, args ...interface{}) ([]*storage.Item, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*storage.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanItem.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanItem scans a memory item from a database row.
func scanItem(scanner rowScanner) (*storage.Item, error) {
	var item storage.Item
	var embeddingStr sql.NullString
	var metadataStr sql.NullString
	var expiresAt sql.NullTime

	err := scanner.Scan(
		&item.ID,
		&item.UserID,
		&item.Type,
		&item.Content,
		&item.Source,
		&item.Relevance,
		&metadataStr,
		&embeddingStr,
		&item.CreatedAt,
		&item.UpdatedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	if embeddingStr.Valid && embeddingStr.String != "" {
		if err := json.Unmarshal([]byte(embeddingStr.String), &item.Embedding); err != nil {
			return nil, fmt.Errorf("parse embedding: %w", err)
		}
	}
	if metadataStr.Valid && metadataStr.String != "" {
		if err := json.Unmarshal([]byte(metadataStr.String), &item.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}
	if expiresAt.Valid {
		item.ExpiresAt = &expiresAt.Time
	}

	return &item, nil
}

// encodeFields serializes an item's embedding and metadata for storage.
//
// An empty embedding is stored as the empty string so that ListEmbedded
// can exclude the item.
func encodeFields(item *storage.Item) (string, string, error) {
	var embeddingJSON string
	if len(item.Embedding) > 0 {
		b, err := json.Marshal(item.Embedding)
		if err != nil {
			return "", "", err
		}
		embeddingJSON = string(b)
	}

	var metadataJSON string
	if item.Metadata != nil {
		b, err := json.Marshal(item.Metadata)
		if err != nil {
			return "", "", err
		}
		metadataJSON = string(b)
	}

	return embeddingJSON, metadataJSON, nil
}
