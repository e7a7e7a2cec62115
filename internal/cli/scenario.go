package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/keepsake/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Digest string   `json:"digest,omitempty"` // trace digest, set when the trace was produced
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall run result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScenarioCommand creates the scenario command group.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Run memento scenarios",
	}

	run := &cobra.Command{
		Use:   "run <scenario-file-or-dir>",
		Short: "Run scenario files and compare their traces",
		Long: `Run YAML scenario files. A scenario's trace is compared with
golden/<name>.golden next to the scenario file when that file exists.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)`,
		Example: `  keepsake scenario run ./scenarios
  keepsake scenario run ./scenarios --filter "customer_*"
  keepsake scenario run ./scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}
	run.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	run.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.AddCommand(run)

	return cmd
}

func runScenarios(opts *ScenarioOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	files, err := scenarioFiles(path, opts.Filter)
	if err != nil {
		return err
	}
	if len(files) == 0 && !f.JSON() {
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return nil
	}

	run := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		r := runScenario(f, file, opts.Update)
		if !f.JSON() {
			printScenario(f.Writer, r, opts.Update)
		}
		run.Scenarios = append(run.Scenarios, r)
		if r.Pass {
			run.Passed++
		} else {
			run.Failed++
		}
	}
	return reportRun(f, run)
}

// scenarioFiles resolves path to scenario files: the file itself, or the
// YAML files directly inside a directory whose base name matches filter.
func scenarioFiles(path, filter string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: scenario path not found: %s", ErrCodeNotFound, path))
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeNotFound, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeScanError, err)
	}
	var files []string
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(entry.Name(), ext))
			if err != nil {
				return nil, WrapExitError(ExitCommandError, "invalid filter pattern", err)
			}
			if !matched {
				continue
			}
		}
		files = append(files, filepath.Join(path, entry.Name()))
	}
	return files, nil
}

// runScenario runs one scenario file and checks its trace against the
// golden file, or rewrites the golden file when update is set.
func runScenario(f *OutputFormatter, file string, update bool) ScenarioResult {
	failed := func(name string, errs ...string) ScenarioResult {
		return ScenarioResult{Name: name, Errors: errs}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return failed(filepath.Base(file), fmt.Sprintf("load: %v", err))
	}
	f.VerboseLog("Running %s (%d steps)", scenario.Name, len(scenario.Steps))

	result, err := harness.RunWithLogger(scenario, slog.Default())
	if err != nil {
		return failed(scenario.Name, fmt.Sprintf("run: %v", err))
	}
	snapshot := harness.Snapshot(scenario, result)
	trace, err := snapshot.Marshal()
	if err != nil {
		return failed(scenario.Name, fmt.Sprintf("marshal trace: %v", err))
	}
	digest, err := snapshot.Digest()
	if err != nil {
		return failed(scenario.Name, fmt.Sprintf("digest trace: %v", err))
	}
	f.VerboseLog("%s trace digest %s", scenario.Name, digest)

	golden := goldenFilePath(file)
	if update {
		if err := writeGoldenFile(golden, trace); err != nil {
			return failed(scenario.Name, err.Error())
		}
		return ScenarioResult{Name: scenario.Name, Pass: result.Pass, Digest: digest, Errors: result.Errors}
	}

	want, err := os.ReadFile(golden)
	switch {
	case err == nil && !bytes.Equal(want, trace):
		return failed(scenario.Name, "trace does not match golden file (run with --update to regenerate)")
	case err != nil && !os.IsNotExist(err):
		return failed(scenario.Name, fmt.Sprintf("read golden file: %v", err))
	}
	if !result.Pass {
		return failed(scenario.Name, result.Errors...)
	}
	return ScenarioResult{Name: scenario.Name, Pass: true, Digest: digest}
}

func printScenario(w io.Writer, r ScenarioResult, update bool) {
	switch {
	case r.Pass && update:
		fmt.Fprintf(w, "✓ %s (golden updated)\n", r.Name)
	case r.Pass:
		fmt.Fprintf(w, "✓ %s\n", r.Name)
	default:
		fmt.Fprintf(w, "✗ %s\n", r.Name)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// goldenFilePath returns golden/<name>.golden beside the scenario file.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func writeGoldenFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write golden file: %w", err)
	}
	return nil
}

// reportRun writes the run summary and returns ExitFailure when any
// scenario failed.
func reportRun(f *OutputFormatter, run TestResult) error {
	var failure error
	if run.Failed > 0 {
		failure = NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", run.Failed))
	}

	if f.JSON() {
		response := Response{Status: "ok", Data: run}
		if failure != nil {
			response.Status = "error"
			response.Error = &ErrorBody{Code: "E_SCENARIO_FAILED", Message: failure.Error()}
		}
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintf(f.Writer, "\nSummary: %d passed, %d failed, %d total\n", run.Passed, run.Failed, run.Total)
	if failure != nil {
		return failure
	}
	fmt.Fprintln(f.Writer, "✓ All scenarios passed")
	return nil
}
