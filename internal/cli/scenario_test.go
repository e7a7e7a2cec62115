package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

func TestScenarioRun_Directory(t *testing.T) {
	out, err := execute(t, NewScenarioCommand(testOptions(t, "text")), "run", harnessScenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ customer_reference")
	assert.Contains(t, out, "✓ view_model_recreation")
	assert.Contains(t, out, "Summary: 3 passed, 0 failed, 3 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestScenarioRun_Filter(t *testing.T) {
	out, err := execute(t, NewScenarioCommand(testOptions(t, "json")), "run", harnessScenarios, "--filter", "customer_*")
	require.NoError(t, err)

	var got TestResult
	decodeData(t, out, &got)
	assert.Equal(t, 1, got.Total)
	require.Len(t, got.Scenarios, 1)
	assert.Equal(t, "customer_reference", got.Scenarios[0].Name)
	assert.True(t, got.Scenarios[0].Pass)
	assert.Regexp(t, `^[0-9a-f]{64}$`, got.Scenarios[0].Digest)
}

// copyScenario copies a harness scenario into a temp dir, pointing it at the
// harness catalog.
func copyScenario(t *testing.T, name string) (dir, path string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(harnessScenarios, name+".yaml"))
	require.NoError(t, err)
	catalogDir, err := filepath.Abs("../harness/testdata/catalog")
	require.NoError(t, err)
	data = []byte(replaceLine(string(data), "catalog:", "catalog: "+catalogDir))

	dir = t.TempDir()
	path = filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return dir, path
}

func TestScenarioRun_UpdateThenCompare(t *testing.T) {
	opts := testOptions(t, "text")
	dir, path := copyScenario(t, "customer_reference")

	out, err := execute(t, NewScenarioCommand(opts), "run", path, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "(golden updated)")

	goldenPath := filepath.Join(dir, "golden", "customer_reference.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.True(t, json.Valid(golden))

	_, err = execute(t, NewScenarioCommand(opts), "run", path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}"), 0o644))
	out, err = execute(t, NewScenarioCommand(opts), "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestScenarioRun_FailingScenario(t *testing.T) {
	_, path := copyScenario(t, "customer_reference")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data = []byte(replaceLine(string(data), "  - { op: bookmark", `  - { op: bookmark, object: alice, value: "crm.Customer:someone-else" }`))
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out, err := execute(t, NewScenarioCommand(testOptions(t, "json")), "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_SCENARIO_FAILED", resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
}

func TestScenarioRun_PathErrors(t *testing.T) {
	_, err := execute(t, NewScenarioCommand(testOptions(t, "text")), "run", "testdata/nowhere")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err := execute(t, NewScenarioCommand(testOptions(t, "text")), "run", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "customer_reference.golden"),
		goldenFilePath(filepath.Join("scenarios", "customer_reference.yaml")))
}

// replaceLine replaces the first line starting with prefix.
func replaceLine(s, prefix, line string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, prefix) {
			lines[i] = line
			break
		}
	}
	return strings.Join(lines, "\n")
}
