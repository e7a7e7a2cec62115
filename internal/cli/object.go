package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/keepsake/internal/bookmark"
	"github.com/roach88/keepsake/internal/catalog"
	"github.com/roach88/keepsake/internal/objects"
	"github.com/roach88/keepsake/internal/record"
)

// ObjectResult describes one stored or recreated object.
type ObjectResult struct {
	Bookmark    string            `json:"bookmark"`
	LogicalType string            `json:"logical_type"`
	Key         string            `json:"key,omitempty"`
	Version     int64             `json:"version,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// ObjectOptions holds flags for the object commands.
type ObjectOptions struct {
	*RootOptions
	Key string
}

// NewObjectCommand creates the object command group.
func NewObjectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ObjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "object",
		Short: "Store, resolve and delete catalog objects",
		Long: `Work with objects of the types declared in the catalog.

Entities are saved in the database under their bookmark. View models are
never stored: their bookmark carries their whole state.`,
	}

	put := &cobra.Command{
		Use:   "put <logical-type> [property=value ...]",
		Short: "Save an entity or bookmark a view model",
		Example: `  keepsake object put crm.Customer --key abc-123 name=Alice preferred=true
  keepsake object put crm.Search query=ali selected=crm.Customer:abc-123`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObjectPut(opts, args[0], args[1:], cmd)
		},
	}
	put.Flags().StringVar(&opts.Key, "key", "", "entity key (uuid keys are generated when omitted)")
	cmd.AddCommand(put)

	cmd.AddCommand(&cobra.Command{
		Use:           "get <bookmark>",
		Short:         "Resolve a bookmark and show the object",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObjectGet(opts, args[0], cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "delete <bookmark>",
		Short:         "Delete a stored entity",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObjectDelete(opts, args[0], cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "list [logical-type]",
		Short:         "List stored entity bookmarks",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logicalType := ""
			if len(args) == 1 {
				logicalType = args[0]
			}
			return runObjectList(opts, logicalType, cmd)
		},
	})

	return cmd
}

func runObjectPut(opts *ObjectOptions, logicalType string, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	e, err := openEnv(opts.RootOptions, f, true)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.requireCatalog(f); err != nil {
		return err
	}

	decl, ok := e.session.Catalog.Lookup(logicalType)
	if !ok {
		return fail(f, ExitCommandError, ErrCodeInvalidValue, fmt.Errorf("unknown logical type %q", logicalType))
	}

	values := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fail(f, ExitCommandError, ErrCodeInvalidValue, fmt.Errorf("argument %q is not property=value", arg))
		}
		values[name] = value
	}

	key := opts.Key
	if decl.Sort == objects.SortEntity && key == "" && decl.Key == catalog.KindUUID {
		id, err := uuid.NewV7()
		if err != nil {
			return fail(f, ExitFailure, ErrCodeGeneric, err)
		}
		key = id.String()
		f.VerboseLog("Generated key %s", key)
	}

	r, err := e.session.Build(cmd.Context(), logicalType, key, values)
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeInvalidValue, err)
	}

	result := describeRecord(r)
	if decl.Sort == objects.SortEntity {
		row, err := e.repo.Save(cmd.Context(), r)
		if err != nil {
			return fail(f, ExitFailure, ErrCodeStoreFailed, err)
		}
		b, err := row.Bookmark()
		if err != nil {
			return fail(f, ExitFailure, ErrCodeStoreFailed, err)
		}
		result.Bookmark = b.String()
		result.Version = row.Version
	} else {
		b, err := e.session.Bridge().BookmarkFor(cmd.Context(), r)
		if err != nil {
			return fail(f, ExitFailure, ErrCodeInvalidValue, err)
		}
		result.Bookmark = b.String()
	}

	return f.Emit(result, func(w io.Writer) {
		fmt.Fprintln(w, result.Bookmark)
	})
}

func runObjectGet(opts *ObjectOptions, s string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	b, ok := bookmark.Parse(s)
	if !ok {
		return fail(f, ExitFailure, ErrCodeInvalidBookmark, fmt.Errorf("%q is not a bookmark", s))
	}
	e, err := openEnv(opts.RootOptions, f, true)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.requireCatalog(f); err != nil {
		return err
	}

	obj, found, err := e.session.Bridge().Lookup(cmd.Context(), b)
	if err != nil {
		return fail(f, ExitFailure, ErrCodeStoreFailed, err)
	}
	if !found {
		return fail(f, ExitFailure, ErrCodeObjectNotFound, fmt.Errorf("%s does not resolve", b))
	}
	r, ok := obj.(*record.Record)
	if !ok {
		return fail(f, ExitFailure, ErrCodeGeneric, fmt.Errorf("%s resolved to %T", b, obj))
	}

	result := describeRecord(r)
	result.Bookmark = b.String()
	if e.store != nil {
		if row, found, err := e.store.ReadObject(cmd.Context(), b); err == nil && found {
			result.Version = row.Version
		}
	}

	return f.Emit(result, func(w io.Writer) {
		fmt.Fprintln(w, result.Bookmark)
		for _, name := range r.Names() {
			fmt.Fprintf(w, "  %s = %s\n", name, result.Properties[name])
		}
	})
}

func runObjectDelete(opts *ObjectOptions, s string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	b, ok := bookmark.Parse(s)
	if !ok {
		return fail(f, ExitFailure, ErrCodeInvalidBookmark, fmt.Errorf("%q is not a bookmark", s))
	}
	e, err := openEnv(opts.RootOptions, f, true)
	if err != nil {
		return err
	}
	defer e.Close()

	deleted, err := e.repo.Delete(cmd.Context(), b)
	if err != nil {
		return fail(f, ExitFailure, ErrCodeStoreFailed, err)
	}
	if !deleted {
		return fail(f, ExitFailure, ErrCodeObjectNotFound, fmt.Errorf("%s is not stored", b))
	}

	return f.Emit(map[string]string{"deleted": b.String()}, func(w io.Writer) {
		fmt.Fprintf(w, "✓ deleted %s\n", b)
	})
}

func runObjectList(opts *ObjectOptions, logicalType string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	e, err := openEnv(opts.RootOptions, f, true)
	if err != nil {
		return err
	}
	defer e.Close()

	marks, err := e.repo.List(cmd.Context(), logicalType)
	if err != nil {
		return fail(f, ExitFailure, ErrCodeStoreFailed, err)
	}
	out := make([]string, len(marks))
	for i, b := range marks {
		out[i] = b.String()
	}

	return f.Emit(out, func(w io.Writer) {
		for _, s := range out {
			fmt.Fprintln(w, s)
		}
	})
}

func describeRecord(r *record.Record) ObjectResult {
	props := make(map[string]string, len(r.Fields))
	for name, token := range r.Fields {
		props[name] = token
	}
	return ObjectResult{
		LogicalType: r.Type,
		Key:         r.Key,
		Properties:  props,
	}
}
