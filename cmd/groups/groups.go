// Package groups implements management commands for the taxonomic
// interest-group store.
package groups

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/amt2283/hunterleaf-go/internal/conf"
	"github.com/amt2283/hunterleaf-go/internal/groupstore"
)

// Command creates the groups command with its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Manage the taxonomic interest groups",
	}

	cmd.AddCommand(listCommand(settings), showCommand(settings), importCommand(settings))

	return cmd
}

func openStore(settings *conf.Settings) (*groupstore.Store, error) {
	return groupstore.Open(settings.Groups.DatabasePath)
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the configured categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			defer store.Close()

			categories, err := store.Categories()
			if err != nil {
				return err
			}
			for _, c := range categories {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

func showCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "show [category]",
		Short: "Show the genus entries of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Groups(args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "GENUS\tFAMILY\tCOMMON NAME")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Genus, e.Family, e.CommonName)
			}
			return w.Flush()
		},
	}
}

func importCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Replace the store contents with a JSON seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.ImportJSON(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s\n", args[0])
			return nil
		},
	}
}
