package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/keepsake/internal/bookmark"
	"github.com/roach88/keepsake/internal/memento"
)

// MementoEntry is one key of a decoded memento.
type MementoEntry struct {
	Key   string `json:"key"`
	Token string `json:"token"`

	// Resolved is set by decode --resolve for tokens that are bookmarks of
	// declared types.
	Resolved *bool `json:"resolved,omitempty"`
}

// MementoResult describes one memento.
type MementoResult struct {
	Memento string         `json:"memento"`
	Payload string         `json:"payload"`
	Entries []MementoEntry `json:"entries"`
}

// MementoOptions holds flags for the memento commands.
type MementoOptions struct {
	*RootOptions
	Resolve bool
}

// NewMementoCommand creates the memento command group.
func NewMementoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MementoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "memento",
		Short: "Encode and decode mementos",
		Long: `A memento is an ordered set of key=token pairs encoded as one URL-safe
string. Tokens that are bookmarks read back as objects while those objects
exist.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "encode [key=value ...]",
		Short: "Encode key=value pairs as a memento",
		Example: `  keepsake memento encode name=Alice owner=crm.Customer:abc-123
  keepsake memento encode --codec gzip query="big search"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMementoEncode(opts, args, cmd)
		},
	})

	decode := &cobra.Command{
		Use:   "decode <memento>",
		Short: "Show the pairs inside a memento",
		Long: `Decode a memento and list its pairs in order.

With --resolve, tokens that are bookmarks of catalog types are looked up in
the database and reported as resolved or not.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMementoDecode(opts, args[0], cmd)
		},
	}
	decode.Flags().BoolVar(&opts.Resolve, "resolve", false, "look up bookmark tokens in the database")
	cmd.AddCommand(decode)

	return cmd
}

func runMementoEncode(opts *MementoOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	e, err := openEnv(opts.RootOptions, f, false)
	if err != nil {
		return err
	}
	defer e.Close()

	m := e.session.Mementos.Create()
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fail(f, ExitCommandError, ErrCodeInvalidValue, fmt.Errorf("argument %q is not key=value", arg))
		}
		if err := m.Put(cmd.Context(), key, value); err != nil {
			return fail(f, ExitCommandError, ErrCodeInvalidValue, err)
		}
	}

	return f.Emit(describeMemento(m), func(w io.Writer) {
		fmt.Fprintln(w, m.String())
	})
}

func runMementoDecode(opts *MementoOptions, s string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	e, err := openEnv(opts.RootOptions, f, opts.Resolve)
	if err != nil {
		return err
	}
	defer e.Close()

	m, err := e.session.Mementos.Parse(s)
	if err != nil {
		return fail(f, ExitFailure, ErrCodeInvalidMemento, err)
	}
	result := describeMemento(m)

	if opts.Resolve {
		for i := range result.Entries {
			entry := &result.Entries[i]
			b, ok := bookmark.Parse(entry.Token)
			if !ok {
				continue
			}
			if _, declared := e.session.Types.ByName(b.LogicalType()); !declared {
				continue
			}
			_, found, err := e.session.Bridge().Lookup(cmd.Context(), b)
			if err != nil {
				return fail(f, ExitFailure, ErrCodeStoreFailed, err)
			}
			entry.Resolved = &found
		}
	}

	return f.Emit(result, func(w io.Writer) {
		for _, entry := range result.Entries {
			switch {
			case entry.Resolved == nil:
				fmt.Fprintf(w, "%s=%s\n", entry.Key, entry.Token)
			case *entry.Resolved:
				fmt.Fprintf(w, "%s=%s (resolved)\n", entry.Key, entry.Token)
			default:
				fmt.Fprintf(w, "%s=%s (absent)\n", entry.Key, entry.Token)
			}
		}
	})
}

func describeMemento(m *memento.Memento) MementoResult {
	result := MementoResult{
		Memento: m.String(),
		Payload: m.Payload(),
		Entries: make([]MementoEntry, 0, m.Len()),
	}
	for _, key := range m.Keys() {
		token, _ := m.Token(key)
		result.Entries = append(result.Entries, MementoEntry{Key: key, Token: token})
	}
	return result
}
