package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newCorporaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpora",
		Short: "Manage stored corpora",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored corpora",
		Args:  cobra.NoArgs,
		RunE:  runCorporaList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored corpus",
		Args:  cobra.ExactArgs(1),
		RunE:  runCorporaDelete,
	})

	return cmd
}

func runCorporaList(cmd *cobra.Command, args []string) error {
	if err := validateOutputFormat(); err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	names, err := client.ListCorpora(cmd.Context())
	if err != nil {
		return err
	}

	if outputFmt == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(names)
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func runCorporaDelete(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err := client.DeleteCorpus(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted corpus %q\n", args[0])
	return nil
}
