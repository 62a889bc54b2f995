// Package oceanbase provides an OceanBase (MySQL protocol) implementation for corpus storage.
//
// Embeddings are kept as VECTOR-style literals ("[0.1,0.2]") in LONGTEXT
// columns rather than native VECTOR columns, which hold float32 components
// and would lose the double precision distances are computed with.
package oceanbase

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/oceanbase/embedsearch-go/pkg/storage"
)

// Client is an OceanBase corpus store.
type Client struct {
	db        *sql.DB
	tableName string
}

// Config contains OceanBase configuration.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	TableName string
}

// DSN returns the go-sql-driver/mysql data source name for cfg.
func (cfg *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
}

// NewClient creates a new OceanBase client and ensures the table exists.
func NewClient(cfg *Config) (*Client, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
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
			position INT NOT NULL,
			label VARCHAR(1024) NOT NULL,
			document LONGTEXT NOT NULL,
			embedding LONGTEXT NOT NULL,
			created_at DATETIME,
			UNIQUE KEY uk_corpus_position (corpus, position)
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
		INSERT INTO %s (id, corpus, position, label, document, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.tableName))
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.ID, name, r.Position, r.Label, r.Text, vectorToString(r.Embedding), now); err != nil {
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
		SELECT id, corpus, position, label, document, embedding, created_at
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
		var vectorStr string
		var createdAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.Corpus, &r.Position, &r.Label, &r.Text, &vectorStr, &createdAt); err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		if r.Embedding, err = stringToVector(vectorStr); err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		if createdAt.Valid {
			r.CreatedAt = createdAt.Time
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
