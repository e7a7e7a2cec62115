package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/keepsake/internal/bookmark"
)

// BookmarkResult describes one bookmark.
type BookmarkResult struct {
	Bookmark    string `json:"bookmark"`
	LogicalType string `json:"logical_type"`
	Identifier  string `json:"identifier"`
}

// NewBookmarkCommand creates the bookmark command group.
func NewBookmarkCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookmark",
		Short: "Parse and format bookmarks",
		Long: `A bookmark names one object as <logical-type>:<identifier>.
The logical type may not contain ':'; the identifier may contain anything.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "parse <bookmark>",
		Short: "Split a bookmark into logical type and identifier",
		Example: `  keepsake bookmark parse Customer:abc-123
  keepsake bookmark parse --format json demo.Order:ORD-7`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			b, ok := bookmark.Parse(args[0])
			if !ok {
				return fail(f, ExitFailure, ErrCodeInvalidBookmark, fmt.Errorf("%q is not a bookmark", args[0]))
			}
			return outputBookmark(f, b)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "format <logical-type> <identifier>",
		Short:         "Join a logical type and identifier into a bookmark",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			b, err := bookmark.New(args[0], args[1])
			if err != nil {
				return fail(f, ExitFailure, ErrCodeInvalidBookmark, err)
			}
			if f.JSON() {
				return outputBookmark(f, b)
			}
			return f.Emit(nil, func(w io.Writer) {
				fmt.Fprintln(w, b.String())
			})
		},
	})

	return cmd
}

func outputBookmark(f *OutputFormatter, b bookmark.Bookmark) error {
	result := BookmarkResult{
		Bookmark:    b.String(),
		LogicalType: b.LogicalType(),
		Identifier:  b.Identifier(),
	}
	return f.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "logical_type: %s\n", result.LogicalType)
		fmt.Fprintf(w, "identifier:   %s\n", result.Identifier)
	})
}
