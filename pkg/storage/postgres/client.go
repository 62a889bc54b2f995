// Package postgres provides PostgreSQL implementation for corpus storage.
//
// Embeddings are stored in DOUBLE PRECISION[] columns, so no vector extension
// is required on the server.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/oceanbase/embedsearch-go/pkg/storage"
)

// Client is a PostgreSQL corpus store.
type Client struct {
	db        *sql.DB
	tableName string
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	TableName string
	SSLMode   string
}

// DSN returns the lib/pq connection string for cfg.
func (cfg *Config) DSN() string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)
}

// NewClient creates a new PostgreSQL client and ensures the table exists.
func NewClient(cfg *Config) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
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

// initTables initializes the database table.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			corpus VARCHAR(255) NOT NULL,
			position INTEGER NOT NULL,
			label TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding DOUBLE PRECISION[] NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (corpus, position)
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: create table: %w", err)
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

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE corpus = $1", c.tableName), name); err != nil {
		return fmt.Errorf("Save: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, corpus, position, label, text, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.tableName))
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.ID, name, r.Position, r.Label, r.Text, pq.Float64Array(r.Embedding), now); err != nil {
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
		WHERE corpus = $1
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
		var embedding pq.Float64Array
		if err := rows.Scan(&r.ID, &r.Corpus, &r.Position, &r.Label, &r.Text, &embedding, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		r.Embedding = []float64(embedding)
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
	result, err := c.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE corpus = $1", c.tableName), name)
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
