// Package csvfile stores each corpus as a CSV file in a directory.
//
// Files are named <corpus>.csv with the header id,position,label,text,embedding;
// the embedding column holds a JSON array. The format is meant for inspection
// and hand-off, not for concurrent writers.
package csvfile

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oceanbase/embedsearch-go/pkg/storage"
)

const extension = ".csv"

var header = []string{"id", "position", "label", "text", "embedding"}

// Client implements CorpusStore on top of a directory of CSV files.
type Client struct {
	dir string
}

// Config contains configuration for the CSV store.
type Config struct {
	// Dir is the directory holding the corpus files. It is created if missing.
	Dir string
}

// NewClient creates a CSV store rooted at cfg.Dir.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.Dir == "" {
		return nil, errors.New("NewCSVClient: directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("NewCSVClient: %w", err)
	}
	return &Client{dir: cfg.Dir}, nil
}

func (c *Client) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid corpus name %q", name)
	}
	return filepath.Join(c.dir, name+extension), nil
}

// Save writes records to <name>.csv, replacing any previous file atomically.
// Records are written in position order.
func (c *Client) Save(ctx context.Context, name string, records []*storage.Record) error {
	path, err := c.path(name)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("Save: %w", err)
	}

	sorted := make([]*storage.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	tmp, err := os.CreateTemp(c.dir, "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := writeRecords(tmp, sorted); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("Save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

func writeRecords(w io.Writer, records []*storage.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		embeddingJSON, err := json.Marshal(r.Embedding)
		if err != nil {
			return err
		}
		row := []string{
			strconv.FormatInt(r.ID, 10),
			strconv.Itoa(r.Position),
			r.Label,
			r.Text,
			string(embeddingJSON),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Load reads <name>.csv. Returns ErrCorpusNotFound if the file does not exist.
func (c *Client) Load(ctx context.Context, name string) ([]*storage.Record, error) {
	path, err := c.path(name)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("Load: %q: %w", name, storage.ErrCorpusNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	records, err := readRecords(f, name, info.ModTime())
	if err != nil {
		return nil, fmt.Errorf("Load: %s: %w", path, err)
	}
	return records, nil
}

func readRecords(r io.Reader, name string, modTime time.Time) ([]*storage.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, col := range header {
		if head[i] != col {
			return nil, fmt.Errorf("unexpected header column %d: %q", i, head[i])
		}
	}

	var records []*storage.Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse id: %w", err)
		}
		position, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("parse position: %w", err)
		}
		var embedding []float64
		if err := json.Unmarshal([]byte(row[4]), &embedding); err != nil {
			return nil, fmt.Errorf("parse embedding: %w", err)
		}

		records = append(records, &storage.Record{
			ID:        id,
			Corpus:    name,
			Position:  position,
			Label:     row[2],
			Text:      row[3],
			Embedding: embedding,
			CreatedAt: modTime,
		})
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].Position < records[j].Position })
	return records, nil
}

// Delete removes <name>.csv.
func (c *Client) Delete(ctx context.Context, name string) error {
	path, err := c.path(name)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("Delete: %q: %w", name, storage.ErrCorpusNotFound)
	}
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

// List returns the names of the corpus files in the directory.
func (c *Client) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || filepath.Ext(e.Name()) != extension {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), extension))
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op; files are closed after each operation.
func (c *Client) Close() error {
	return nil
}
