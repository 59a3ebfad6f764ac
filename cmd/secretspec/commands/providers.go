package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ashebanow/secretspec/internal/providers"
)

func NewProvidersCommand(app *App) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List available providers",
		Long: `Display the provider schemes secretspec understands. Use --verbose to see
example URIs for each.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "SCHEME\tPROVIDER\tWRITABLE\tDESCRIPTION\n")
			_, _ = fmt.Fprintf(w, "------\t--------\t--------\t-----------\n")
			for _, info := range providers.List() {
				writable := "yes"
				if info.ReadOnly {
					writable = "no"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Scheme, info.Name, writable, info.Description)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if verbose {
				_, _ = fmt.Fprintln(out, "\nExamples:")
				for _, info := range providers.List() {
					_, _ = fmt.Fprintf(out, "\n%s:\n", info.Scheme)
					for _, example := range info.Examples {
						_, _ = fmt.Fprintf(out, "  • %s\n", example)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show example URIs")
	return cmd
}
