package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/oceanbase/embedsearch-go/pkg/ingest"
)

var (
	embedInput   string
	embedOutput  string
	embedCorpus  string
	embedTimeout time.Duration
)

func newEmbedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Embed a product catalog",
		Long: `Embed reads a product CSV (columns Handle, Title, Body or Body (HTML), Image Src),
embeds "Title Body" for every product with HTML removed, and writes the result
as CSV with columns handle,title,body,imageSrc,vector.

With --corpus the embedded products are also saved to the configured store
under that name. Without --output or --corpus, output/data.csv is written.`,
		Args: cobra.NoArgs,
		RunE: runEmbed,
	}

	cmd.Flags().StringVarP(&embedInput, "input", "i", "input/products.csv", "product CSV to embed")
	cmd.Flags().StringVar(&embedOutput, "output-file", "", "CSV file to write embedded products to")
	cmd.Flags().StringVar(&embedCorpus, "corpus", "", "save the embedded products to the store under this name")
	cmd.Flags().DurationVar(&embedTimeout, "timeout", 10*time.Minute, "overall embedding timeout")

	return cmd
}

func runEmbed(cmd *cobra.Command, args []string) error {
	output := embedOutput
	if output == "" && embedCorpus == "" {
		output = filepath.Join("output", "data.csv")
	}

	f, err := os.Open(embedInput)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	products, err := ingest.ReadProducts(f)
	_ = f.Close()
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return fmt.Errorf("no products in %s", embedInput)
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), embedTimeout)
	defer cancel()

	entries := ingest.ProductEntries(products)
	built, err := client.BuildCorpus(ctx, entries)
	if err != nil {
		return err
	}

	if output != "" {
		vectors := make([][]float64, built.Len())
		for i, lv := range built.Entries() {
			vectors[i] = lv.Vector
		}
		if err := writeEmbeddedFile(output, products, vectors); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d embedded products to %s\n", len(products), output)
	}

	if embedCorpus != "" {
		if err := client.SaveCorpus(ctx, embedCorpus, entries, built); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d entries as corpus %q\n", built.Len(), embedCorpus)
	}

	return nil
}

func writeEmbeddedFile(path string, products []ingest.Product, vectors [][]float64) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := ingest.WriteEmbeddedProducts(f, products, vectors); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
