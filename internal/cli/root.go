package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/keepsake/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Overrides for the matching config settings. Empty means unset.
	Database string
	Catalog  string
	Codec    string

	settings *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Settings returns the effective configuration: the config file and
// environment, then any flag overrides. It is loaded once.
func (o *RootOptions) Settings() (config.Config, error) {
	if o.settings != nil {
		return *o.settings, nil
	}
	cfg, used, err := config.Load(viper.New(), o.ConfigFile)
	if err != nil {
		return config.Config{}, err
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.Catalog != "" {
		cfg.Catalog = o.Catalog
	}
	if o.Codec != "" {
		cfg.Codec = o.Codec
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid settings: %w", err)
	}
	slog.Debug("settings loaded", "file", used, "database", cfg.Database, "catalog", cfg.Catalog, "codec", cfg.Codec)
	o.settings = &cfg
	return cfg, nil
}

// NewRootCommand creates the root command for the keepsake CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "keepsake",
		Short: "keepsake - durable references to domain objects",
		Long: `Encode object references as bookmarks and property sets as mementos:
compact strings that survive a round trip through a URL and read back as live
objects, or as absent once the object is gone.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := opts.Settings()
			if err != nil {
				return WrapExitError(ExitCommandError, ErrCodeInvalidConfig, err)
			}
			level := cfg.SlogLevel()
			if opts.Verbose {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			})
			slog.SetDefault(slog.New(handler))
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./keepsake.toml or ~/.config/keepsake/keepsake.toml)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Catalog, "catalog", "", "catalog directory (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Codec, "codec", "", "memento codec url|gzip (overrides config)")

	// Add subcommands
	cmd.AddCommand(NewBookmarkCommand(opts))
	cmd.AddCommand(NewMementoCommand(opts))
	cmd.AddCommand(NewObjectCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// newFormatter returns the output formatter for a command.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// fail reports an error through the formatter and returns it as an
// ExitError carrying exitCode.
func fail(f *OutputFormatter, exitCode int, code string, err error) error {
	_ = f.Error(code, err.Error(), nil)
	exitErr := WrapExitError(exitCode, code, err)
	exitErr.Reported = true
	return exitErr
}
