// Package commands implements the secretspec command line.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashebanow/secretspec/internal/config"
	dserrors "github.com/ashebanow/secretspec/internal/errors"
	"github.com/ashebanow/secretspec/internal/logging"
	"github.com/ashebanow/secretspec/internal/metrics"
	"github.com/ashebanow/secretspec/internal/providers"
)

// App carries the global flags and the shared services built from them.
type App struct {
	Version string

	ConfigPath  string
	Debug       bool
	NoColor     bool
	MetricsFile string

	Logger   *logging.Logger
	Recorder *metrics.Recorder

	// Environ replaces the process environment when non-nil.
	Environ map[string]string
	// ProviderOptions are appended to every providers.New call.
	ProviderOptions []providers.Option
}

// NewRootCommand builds the secretspec command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "secretspec",
		Short: "Read and write project secrets in any backend",
		Long: `secretspec stores and retrieves the secrets of a project in the backend of
your choice: the OS keyring, a .env file, Bitwarden, 1Password or a cloud
secret manager. Secrets are addressed by project, profile and key.`,
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.Logger = logging.NewWithWriter(cmd.ErrOrStderr(), app.Debug, app.NoColor)
			app.Recorder = metrics.NewRecorder()
		},
	}

	root.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "Config file path (default "+config.DefaultPath()+")")
	root.PersistentFlags().BoolVar(&app.NoColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVar(&app.Debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&app.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	root.AddCommand(
		NewGetCommand(app),
		NewSetCommand(app),
		NewProvidersCommand(app),
	)
	return root
}

// secretFlags are shared by get and set.
type secretFlags struct {
	provider string
	project  string
	profile  string
	field    string
}

func (f *secretFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.provider, "provider", "p", "", "Provider URI or alias (env: SECRETSPEC_PROVIDER)")
	cmd.Flags().StringVar(&f.project, "project", "", "Project name (env: SECRETSPEC_PROJECT)")
	cmd.Flags().StringVarP(&f.profile, "profile", "P", "", "Profile name (env: SECRETSPEC_PROFILE, default \"default\")")
	cmd.Flags().StringVar(&f.field, "field", "", "Item field to address (bitwarden:// only)")
}

// open resolves the settings and builds the instrumented provider.
func (app *App) open(f secretFlags) (*providers.Instrumented, *config.Settings, error) {
	settings, err := config.Load(config.Settings{
		Provider:    f.provider,
		Project:     f.project,
		Profile:     f.profile,
		MetricsFile: app.MetricsFile,
	}, app.ConfigPath, app.Environ)
	if err != nil {
		return nil, nil, err
	}
	if err := settings.RequireProject(); err != nil {
		return nil, nil, err
	}

	uri := settings.ProviderURI()
	scheme, _, _ := strings.Cut(uri, ":")
	app.Logger.Debug("using %s provider for %s (profile %s)", scheme, settings.Project, settings.Profile)

	opts := append([]providers.Option{providers.WithLogger(app.Logger)}, app.ProviderOptions...)
	p, err := providers.New(uri, opts...)
	if err != nil {
		return nil, nil, err
	}
	return providers.Instrument(p, app.Logger, app.Recorder), settings, nil
}

// flushMetrics writes the metrics file when one is configured. Failures are
// logged, not returned.
func (app *App) flushMetrics(settings *config.Settings) {
	if settings == nil || settings.MetricsFile == "" {
		return
	}
	if err := app.Recorder.WriteTextfile(settings.MetricsFile); err != nil {
		app.Logger.Warn("%v", err)
	}
}

// PrintError reports a failed command on w. Transient failures, such as a
// Secrets Manager rate limit, get a hint to run the command again.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", dserrors.SimplifyError(err))
	if dserrors.IsRetryable(err) {
		fmt.Fprintln(w, "This failure is usually temporary and secretspec does not retry on its own. Run the command again shortly.")
	}
}
