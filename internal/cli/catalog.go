package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/keepsake/internal/catalog"
)

// CatalogIssue is one problem found in a catalog.
type CatalogIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// CatalogType summarizes one declaration.
type CatalogType struct {
	LogicalType string            `json:"logical_type"`
	Sort        string            `json:"sort"`
	Key         string            `json:"key,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// ValidationResult holds catalog validation results.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Types  []CatalogType  `json:"types,omitempty"`
	Errors []CatalogIssue `json:"errors,omitempty"`
}

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect logical type declarations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [catalog-dir]",
		Short: "Check a catalog and list its types",
		Long: `Load the CUE files of a catalog directory and check every declaration:
entities need a key kind, view models take none, and every kind must be one
of string, int, bool, uuid, time or ref.

Without an argument the configured catalog is validated.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runCatalogValidate(rootOpts, dir, cmd)
		},
	})

	return cmd
}

func runCatalogValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	if dir == "" {
		cfg, err := opts.Settings()
		if err != nil {
			return fail(f, ExitCommandError, ErrCodeInvalidConfig, err)
		}
		dir = cfg.Catalog
	}
	if dir == "" {
		return fail(f, ExitCommandError, ErrCodeNotFound, errors.New("no catalog directory given or configured"))
	}

	cat, errs := LoadCatalog(dir)
	if cat == nil {
		issues := make([]CatalogIssue, 0, len(errs))
		for _, err := range errs {
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				issues = append(issues, CatalogIssue{Code: ErrCodeGeneric, Message: err.Error()})
				continue
			}
			issue := CatalogIssue{Code: loadErr.Code, Message: loadErr.Message}
			if loadErr.Pos.IsValid() {
				issue.File = loadErr.Pos.Filename()
				issue.Line = loadErr.Pos.Line()
			}
			issues = append(issues, issue)
		}
		// A missing or empty directory is a command error, not a finding.
		if len(issues) == 1 && isPathCode(issues[0].Code) {
			_ = f.Error(issues[0].Code, issues[0].Message, nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", issues[0].Code, issues[0].Message))
		}
		return outputCatalogIssues(f, issues)
	}

	result := ValidationResult{Valid: true, Types: summarize(cat)}
	for _, t := range result.Types {
		f.VerboseLog("%s (%s)", t.LogicalType, t.Sort)
	}
	return f.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Catalog valid: %d type(s)\n", len(result.Types))
	})
}

func isPathCode(code string) bool {
	switch code {
	case ErrCodeNotFound, ErrCodeNoFiles, ErrCodeScanError:
		return true
	}
	return false
}

func summarize(cat *catalog.Catalog) []CatalogType {
	out := make([]CatalogType, 0, len(cat.Decls()))
	for _, d := range cat.Decls() {
		t := CatalogType{
			LogicalType: d.LogicalType,
			Sort:        d.Sort.String(),
			Key:         string(d.Key),
			Properties:  make(map[string]string, len(d.Properties)),
		}
		for _, p := range d.Properties {
			t.Properties[p.Name] = string(p.Kind)
		}
		out = append(out, t)
	}
	return out
}

// outputCatalogIssues reports validation findings.
func outputCatalogIssues(f *OutputFormatter, issues []CatalogIssue) error {
	if f.JSON() {
		response := Response{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: issues},
			Error: &ErrorBody{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}
		encoder := json.NewEncoder(f.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
	}

	fmt.Fprintln(f.Writer, "✗ Validation failed")
	fmt.Fprintln(f.Writer)
	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(f.Writer, "%s line %d\n", issue.File, issue.Line)
		}
		fmt.Fprintf(f.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
}
