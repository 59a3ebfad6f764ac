package commands

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ashebanow/secretspec/pkg/secure"
)

func NewSetCommand(app *App) *cobra.Command {
	var flags secretFlags

	cmd := &cobra.Command{
		Use:   "set KEY [VALUE]",
		Short: "Store a secret",
		Long: `Create or replace a secret. When VALUE is omitted it is read from stdin, which
keeps it out of your shell history; one trailing newline is removed.

Examples:
  secretspec set API_TOKEN --project myapp < token.txt
  printf '%s' "$TOKEN" | secretspec set API_TOKEN --project myapp --provider bws://project-id`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			var value *secure.String
			if len(args) == 2 {
				value = secure.NewString(args[1])
			} else {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read value from stdin: %w", err)
				}
				raw = bytes.TrimSuffix(raw, []byte("\n"))
				raw = bytes.TrimSuffix(raw, []byte("\r"))
				value = secure.NewStringFromBytes(raw)
			}
			defer value.Destroy()

			p, settings, err := app.open(flags)
			if err != nil {
				return err
			}
			defer app.flushMetrics(settings)

			if err := p.SetField(cmd.Context(), settings.Project, key, value, settings.Profile, flags.field); err != nil {
				return err
			}

			app.Logger.Info("✓ Saved %s to %s (project %s, profile %s)", key, p.Name(), settings.Project, settings.Profile)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
