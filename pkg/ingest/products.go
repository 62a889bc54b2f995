// Package ingest reads product catalogs into corpus entries and writes the
// embedded result back out as CSV.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/oceanbase/embedsearch-go/pkg/corpus"
)

// Column names of a Shopify-style product export.
const (
	ColumnHandle   = "Handle"
	ColumnTitle    = "Title"
	ColumnBody     = "Body"
	ColumnBodyHTML = "Body (HTML)"
	ColumnImageSrc = "Image Src"
)

var embeddedHeader = []string{"handle", "title", "body", "imageSrc", "vector"}

// ErrMissingColumn is returned when a required header column is absent.
var ErrMissingColumn = errors.New("missing required column")

// Product is one row of a product catalog.
type Product struct {
	Handle   string
	Title    string
	Body     string
	ImageSrc string
}

// Text returns the string that is embedded for the product: the title
// followed by the body with HTML removed.
func (p Product) Text() string {
	return p.Title + " " + StripHTML(p.Body)
}

// ReadProducts parses a product CSV. The header must contain Handle, Title,
// Image Src and either Body or Body (HTML); other columns are ignored.
// Rows without a handle, and continuation rows that carry neither a title
// nor a body (extra images or variants), are skipped.
func ReadProducts(r io.Reader) ([]Product, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("read products: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("read products: %w", err)
	}

	index := make(map[string]int, len(head))
	for i, name := range head {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		index[strings.TrimSpace(name)] = i
	}

	bodyColumn := ColumnBody
	if _, ok := index[bodyColumn]; !ok {
		bodyColumn = ColumnBodyHTML
	}
	for _, name := range []string{ColumnHandle, ColumnTitle, bodyColumn, ColumnImageSrc} {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("read products: %w: %q", ErrMissingColumn, name)
		}
	}

	field := func(row []string, name string) string {
		i := index[name]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	var products []Product
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read products: %w", err)
		}

		p := Product{
			Handle:   field(row, ColumnHandle),
			Title:    field(row, ColumnTitle),
			Body:     field(row, bodyColumn),
			ImageSrc: field(row, ColumnImageSrc),
		}
		if p.Handle == "" || (p.Title == "" && p.Body == "") {
			continue
		}
		products = append(products, p)
	}

	return products, nil
}

// ProductEntries converts products to corpus entries labeled by handle.
func ProductEntries(products []Product) []corpus.Entry {
	entries := make([]corpus.Entry, len(products))
	for i, p := range products {
		entries[i] = corpus.Entry{Label: p.Handle, Text: p.Text()}
	}
	return entries
}

// WriteEmbeddedProducts writes products with their vectors as CSV with the
// header handle,title,body,imageSrc,vector. Bodies are written without HTML
// and vectors as JSON arrays. vectors[i] belongs to products[i].
func WriteEmbeddedProducts(w io.Writer, products []Product, vectors [][]float64) error {
	if len(products) != len(vectors) {
		return fmt.Errorf("write embedded products: %d products but %d vectors", len(products), len(vectors))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(embeddedHeader); err != nil {
		return fmt.Errorf("write embedded products: %w", err)
	}
	for i, p := range products {
		vectorJSON, err := json.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("write embedded products: row %d: %w", i, err)
		}
		row := []string{p.Handle, p.Title, StripHTML(p.Body), p.ImageSrc, string(vectorJSON)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write embedded products: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write embedded products: %w", err)
	}
	return nil
}

// ReadEmbeddedProducts reads a file produced by WriteEmbeddedProducts into
// labeled vectors, labeled by handle, in file order.
func ReadEmbeddedProducts(r io.Reader) ([]corpus.LabeledVector, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(embeddedHeader)

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read embedded products: %w", err)
	}
	for i, name := range embeddedHeader {
		if head[i] != name {
			return nil, fmt.Errorf("read embedded products: %w: %q", ErrMissingColumn, name)
		}
	}

	var vectors []corpus.LabeledVector
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read embedded products: %w", err)
		}

		var vector []float64
		if err := json.Unmarshal([]byte(row[4]), &vector); err != nil {
			return nil, fmt.Errorf("read embedded products: %q: vector: %w", row[0], err)
		}
		vectors = append(vectors, corpus.LabeledVector{Label: row[0], Vector: vector})
	}
	return vectors, nil
}
