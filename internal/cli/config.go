package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/keepsake/internal/config"
)

// ConfigOptions holds flags for the config commands.
type ConfigOptions struct {
	*RootOptions
	Force bool
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConfigOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the keepsake configuration",
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with the default settings",
		Long: `Write the default settings as TOML. Without a path the file goes to
~/.config/keepsake/keepsake.toml. An existing file is kept unless --force is
given.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(opts, args, cmd)
		},
	}
	initCmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Print the effective settings",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts.RootOptions, cmd)
			cfg, err := opts.Settings()
			if err != nil {
				return fail(f, ExitCommandError, ErrCodeInvalidConfig, err)
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return fail(f, ExitFailure, ErrCodeGeneric, err)
			}
			return f.Emit(cfg, func(w io.Writer) {
				w.Write(data)
			})
		},
	})

	return cmd
}

func runConfigInit(opts *ConfigOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		p, err := config.DefaultPath()
		if err != nil {
			return fail(f, ExitCommandError, ErrCodeWriteFailed, err)
		}
		path = p
	}

	if err := config.WriteFile(path, config.Default(), opts.Force); err != nil {
		return fail(f, ExitCommandError, ErrCodeWriteFailed, err)
	}

	return f.Emit(map[string]string{"path": path}, func(w io.Writer) {
		fmt.Fprintf(w, "✓ wrote %s\n", path)
	})
}
