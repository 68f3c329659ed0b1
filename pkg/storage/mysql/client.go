// Package mysql provides a MySQL implementation of the memory item store.
//
// Embeddings are stored as JSON in LONGTEXT columns; similarity scoring
// happens in the caller.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/crewmind/crewmind-go/pkg/storage"
)

// Client implements storage.Store using MySQL as the backend.
type Client struct {
	db        *sql.DB
	tableName string
}

// Config contains configuration for creating a MySQL store.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	TableName string
}

// NewClient creates a new MySQL store client.
//
// Parameters:
//   - cfg: Configuration containing connection settings and table name
//
// Returns:
//   - *Client: The MySQL client instance
//   - error: Error if connection or table creation fails
func NewClient(cfg *Config) (*Client, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
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
			id BIGINT PRIMARY KEY,
			user_id VARCHAR(128) NOT NULL,
			type VARCHAR(32) NOT NULL,
			content LONGTEXT NOT NULL,
			source VARCHAR(64),
			relevance DOUBLE NOT NULL DEFAULT 0.5,
			metadata JSON,
			embedding LONGTEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME,
			INDEX idx_user_relevance (user_id, relevance)
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
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

	var metadataArg interface{}
	if metadataJSON != "" {
		metadataArg = metadataJSON
	}

	_, err = c.db.ExecContext(ctx, query,
		item.ID,
		item.UserID,
		item.Type,
		item.Content,
		item.Source,
		item.Relevance,
		metadataArg,
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

	var metadataArg interface{}
	if metadataJSON != "" {
		metadataArg = metadataJSON
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET content = ?, relevance = ?, metadata = ?, embedding = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, c.tableName)

	result, err := c.db.ExecContext(ctx, query,
		item.Content, item.Relevance, metadataArg, embeddingJSON, item.UpdatedAt,
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
