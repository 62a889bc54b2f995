// Package sqlite provides SQLite implementation for corpus storage.
//
// SQLite is a lightweight, file-based database suitable for local development
// and small corpora. Vectors are stored as JSON strings in TEXT fields.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/oceanbase/embedsearch-go/pkg/storage"
)

// Client implements CorpusStore using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// tableName is the name of the table storing records.
	tableName string
}

// Config contains configuration for creating a SQLite CorpusStore.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TableName is the name of the table to use (default: "corpus_entries").
	TableName string
}

// NewClient creates a new SQLite CorpusStore client.
//
// Parameters:
//   - cfg: Configuration containing database path and table name
//
// Returns:
//   - *Client: The SQLite client instance
//   - error: Error if database connection or table creation fails
func NewClient(cfg *Config) (*Client, error) {
	// Create parent directory if it doesn't exist
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

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "corpus_entries"
	}

	client := &Client{
		db:        db,
		tableName: tableName,
	}

	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table structure.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			corpus TEXT NOT NULL,
			position INTEGER NOT NULL,
			label TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (corpus, position)
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}
	return nil
}

// Save replaces the named corpus with records inside a single transaction.
func (c *Client) Save(ctx context.Context, name string, records []*storage.Record) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE corpus = ?", c.tableName), name); err != nil {
		return fmt.Errorf("Save: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, corpus, position, label, text, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.tableName))
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	for _, r := range records {
		embeddingJSON, err := json.Marshal(r.Embedding)
		if err != nil {
			return fmt.Errorf("Save: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, name, r.Position, r.Label, r.Text, string(embeddingJSON), now); err != nil {
			return fmt.Errorf("Save: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// Load returns the records of the named corpus ordered by position.
func (c *Client) Load(ctx context.Context, name string) ([]*storage.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, corpus, position, label, text, embedding, created_at
		FROM %s
		WHERE corpus = ?
		ORDER BY position
	`, c.tableName)

	rows, err := c.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*storage.Record
	for rows.Next() {
		var r storage.Record
		var embeddingStr string
		if err := rows.Scan(&r.ID, &r.Corpus, &r.Position, &r.Label, &r.Text, &embeddingStr, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		if err := json.Unmarshal([]byte(embeddingStr), &r.Embedding); err != nil {
			return nil, fmt.Errorf("Load: parse embedding: %w", err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("Load: %q: %w", name, storage.ErrCorpusNotFound)
	}
	return records, nil
}

// Delete removes every record of the named corpus.
func (c *Client) Delete(ctx context.Context, name string) error {
	result, err := c.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE corpus = ?", c.tableName), name)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("Delete: %q: %w", name, storage.ErrCorpusNotFound)
	}
	return nil
}

// List returns the names of stored corpora.
func (c *Client) List(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT corpus FROM %s ORDER BY corpus", c.tableName))
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
