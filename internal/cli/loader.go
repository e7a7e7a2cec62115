package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"
	"github.com/hashicorp/go-multierror"

	"github.com/roach88/keepsake/internal/catalog"
)

// LoadError represents an error that occurred while loading a catalog.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadCatalog loads the catalog in dir. On failure it returns every problem
// found, each as a *LoadError.
func LoadCatalog(dir string) (*catalog.Catalog, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing catalog directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	cat, err := catalog.Load(dir)
	if err != nil {
		return nil, convertCatalogError(err)
	}
	return cat, nil
}

// FindCUEFiles returns the .cue files directly inside dir. A catalog is a
// single CUE package, so subdirectories are not searched.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// convertCatalogError flattens a catalog error into LoadErrors with
// positions.
func convertCatalogError(err error) []error {
	var all []error
	var merr *multierror.Error
	if errors.As(err, &merr) {
		all = merr.Errors
	} else {
		all = []error{err}
	}

	out := make([]error, 0, len(all))
	for _, e := range all {
		var compileErr *catalog.CompileError
		if errors.As(e, &compileErr) {
			out = append(out, &LoadError{
				Code:    MapFieldToErrorCode(compileErr.Field),
				Message: compileErr.Message,
				Pos:     compileErr.Pos,
			})
			continue
		}
		out = append(out, &LoadError{Code: ErrCodeLoadFailed, Message: e.Error()})
	}
	return out
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // Catalog or store could not be opened
	ErrCodeWriteFailed = "E007" // File write error

	// Catalog declaration errors
	ErrCodeCatalogSchema   = "E101" // Declaration does not match the catalog schema
	ErrCodeCatalogSort     = "E102" // Invalid sort
	ErrCodeCatalogKey      = "E103" // Missing, forbidden or invalid key kind
	ErrCodeCatalogProperty = "E104" // Invalid property

	// Object and memento errors
	ErrCodeInvalidBookmark = "E201" // Malformed bookmark
	ErrCodeObjectNotFound  = "E202" // Bookmark does not resolve
	ErrCodeInvalidMemento  = "E203" // Memento does not parse
	ErrCodeInvalidValue    = "E204" // Value rejected by its kind
	ErrCodeStoreFailed     = "E205" // Store read or write failed

	ErrCodeInvalidConfig = "E301" // Configuration rejected
)

// MapFieldToErrorCode maps a catalog error field such as "crm.Order.key" to
// an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeCatalogSchema
	case strings.HasSuffix(field, ".sort"):
		return ErrCodeCatalogSort
	case strings.HasSuffix(field, ".key"):
		return ErrCodeCatalogKey
	case strings.HasSuffix(field, ".properties"):
		return ErrCodeCatalogProperty
	default:
		return ErrCodeGeneric
	}
}
