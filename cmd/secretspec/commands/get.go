package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	dserrors "github.com/ashebanow/secretspec/internal/errors"
)

func NewGetCommand(app *App) *cobra.Command {
	var flags secretFlags

	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print a secret",
		Long: `Retrieve a single secret and print its raw value to stdout, suitable for
scripting.

Examples:
  # From the default provider
  secretspec get DATABASE_URL --project myapp

  # From Bitwarden, reading the username of the login item
  secretspec get DB_USER --project myapp --provider bitwarden:// --field username

  # Use in scripts
  export DB_URL=$(secretspec get DATABASE_URL --project myapp --profile production)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			p, settings, err := app.open(flags)
			if err != nil {
				return err
			}
			defer app.flushMetrics(settings)

			value, found, err := p.GetField(cmd.Context(), settings.Project, key, settings.Profile, flags.field)
			if err != nil {
				return err
			}
			if !found {
				return dserrors.UserError{
					Message:    fmt.Sprintf("secret %s not found in %s (project %s, profile %s)", key, p.Name(), settings.Project, settings.Profile),
					Suggestion: fmt.Sprintf("Store it with 'secretspec set %s --project %s --profile %s'", key, settings.Project, settings.Profile),
				}
			}
			defer value.Destroy()

			plain, err := value.Expose()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), plain)
			return err
		},
	}

	flags.register(cmd)
	return cmd
}
