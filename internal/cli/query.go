package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oceanbase/embedsearch-go/pkg/core"
	"github.com/oceanbase/embedsearch-go/pkg/corpus"
	"github.com/oceanbase/embedsearch-go/pkg/ingest"
	"github.com/oceanbase/embedsearch-go/pkg/search"
)

var (
	queryCorpus      string
	queryInput       string
	queryLimit       int
	queryMaxDistance float64
	queryTimeout     time.Duration
)

func newQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Find the entries nearest to a text",
		Long: `Query embeds the given text and ranks a corpus by cosine distance to it,
nearest first. The corpus comes from a stored corpus (--corpus) or from a CSV
written by "embed" (--input). Equidistant entries keep corpus order.`,
		Args: cobra.ExactArgs(1),
		RunE: runQuery,
	}

	cmd.Flags().StringVar(&queryCorpus, "corpus", "", "name of a stored corpus")
	cmd.Flags().StringVarP(&queryInput, "input", "i", "", "embedded products CSV written by embed")
	cmd.Flags().IntVarP(&queryLimit, "limit", "n", 5, "maximum number of results (0 for all)")
	cmd.Flags().Float64Var(&queryMaxDistance, "max-distance", 2, "drop results farther than this cosine distance (0-2)")
	cmd.Flags().DurationVar(&queryTimeout, "timeout", time.Minute, "query timeout")

	return cmd
}

type queryOutput struct {
	Query   string        `json:"query"`
	Results []queryResult `json:"results"`
}

type queryResult struct {
	Rank     int     `json:"rank"`
	Label    string  `json:"label"`
	Distance float64 `json:"distance"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	if err := validateOutputFormat(); err != nil {
		return err
	}
	if (queryCorpus == "") == (queryInput == "") {
		return errors.New("exactly one of --corpus or --input is required")
	}
	if queryMaxDistance < 0 || queryMaxDistance > 2 {
		return fmt.Errorf("--max-distance %g outside [0, 2]", queryMaxDistance)
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
	defer cancel()

	c, err := loadQueryCorpus(ctx, client)
	if err != nil {
		return err
	}

	results, err := client.Search(ctx, args[0], c,
		core.WithLimit(queryLimit),
		core.WithMaxDistance(queryMaxDistance),
	)
	if err != nil {
		return err
	}

	return printResults(cmd.OutOrStdout(), args[0], results)
}

func loadQueryCorpus(ctx context.Context, client *core.Client) (*corpus.Corpus, error) {
	if queryCorpus != "" {
		return client.LoadCorpus(ctx, queryCorpus)
	}

	f, err := os.Open(queryInput)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	vectors, err := ingest.ReadEmbeddedProducts(f)
	if err != nil {
		return nil, err
	}
	return corpus.New(vectors...), nil
}

func printResults(w io.Writer, text string, results []search.DistanceResult) error {
	if outputFmt == "json" {
		out := queryOutput{Query: text, Results: make([]queryResult, len(results))}
		for i, r := range results {
			out.Results[i] = queryResult{Rank: i + 1, Label: r.Label, Distance: r.Distance}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(results) == 0 {
		fmt.Fprintf(w, "No entries within the distance threshold of %q\n", text)
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(w, "%2d. %-40s %.6f\n", i+1, r.Label, r.Distance)
	}
	fmt.Fprintf(w, "The closest entry to %q is: %s\n", text, results[0].Label)
	return nil
}
