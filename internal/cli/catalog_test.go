package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogValidate_Configured(t *testing.T) {
	out, err := execute(t, NewCatalogCommand(testOptions(t, "text")), "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Catalog valid: 4 type(s)")
}

func TestCatalogValidate_JSON(t *testing.T) {
	out, err := execute(t, NewCatalogCommand(testOptions(t, "json")), "validate", "testdata/catalog")
	require.NoError(t, err)

	var got ValidationResult
	decodeData(t, out, &got)
	assert.True(t, got.Valid)
	require.Len(t, got.Types, 4)
	assert.Equal(t, "crm.Customer", got.Types[0].LogicalType)
	assert.Equal(t, "entity", got.Types[0].Sort)
	assert.Equal(t, "string", got.Types[0].Key)
	assert.Equal(t, "bool", got.Types[0].Properties["preferred"])
	assert.Equal(t, "crm.Search", got.Types[2].LogicalType)
	assert.Empty(t, got.Types[2].Key)
}

func TestCatalogValidate_Findings(t *testing.T) {
	out, err := execute(t, NewCatalogCommand(testOptions(t, "json")), "validate", "testdata/catalog_bad")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *ErrorBody       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	for _, issue := range resp.Data.Errors {
		assert.Regexp(t, `^E1\d\d$`, issue.Code)
	}
}

func TestCatalogValidate_PathErrors(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		code string
	}{
		{"missing", "testdata/nowhere", ErrCodeNotFound},
		{"no cue files", "testdata/empty", ErrCodeNoFiles},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewCatalogCommand(testOptions(t, "text")), "validate", tt.dir)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

func TestCatalogValidate_NothingConfigured(t *testing.T) {
	opts := testOptions(t, "text")
	opts.Catalog = ""

	_, err := execute(t, NewCatalogCommand(opts), "validate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := map[string]string{
		"cue":                      ErrCodeCatalogSchema,
		"crm.Order.sort":           ErrCodeCatalogSort,
		"crm.Order.key":            ErrCodeCatalogKey,
		"crm.Order.properties":     ErrCodeCatalogProperty,
		"crm.Order.something-else": ErrCodeGeneric,
	}
	for field, want := range tests {
		assert.Equal(t, want, MapFieldToErrorCode(field), field)
	}
}
