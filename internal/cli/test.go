package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pensionledger/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob over file names)
	GoldenDir string // default: <scenarios-dir>/../golden
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run ledger scenarios",
		Long: `Run scenario files against a fresh in-memory ledger each.

Every step outcome, record and audit assertion is checked, and the
scenario's snapshot is compared with <name>.golden when one exists.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing directory, bad filter)

Examples:
  pledger test ./scenarios
  pledger test ./scenarios --filter "p1_*"
  pledger test ./scenarios --update
  pledger test ./scenarios --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only scenario files whose name matches this glob")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default: <scenarios-dir>/../golden)")

	return cmd
}

func runTests(cmd *cobra.Command, opts *TestOptions, dir string) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(filepath.Dir(filepath.Clean(dir)), "golden")
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		sr := runScenario(cmd, opts, file, goldenDir)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	if opts.Format == "json" {
		if err := outputTestJSON(cmd, result); err != nil {
			return err
		}
	} else {
		outputTestText(cmd, result)
	}
	if result.Failed > 0 {
		return reportedExit(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed), nil)
	}
	return nil
}

// findScenarioFiles lists the .yaml and .yml files directly in dir, in name
// order, keeping those whose base name (without extension) matches filter.
func findScenarioFiles(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(e.Name(), ext))
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// runScenario loads, runs and checks one scenario file. Failures of any
// kind are folded into the returned result.
func runScenario(cmd *cobra.Command, opts *TestOptions, file, goldenDir string) ScenarioResult {
	fail := func(name string, errs ...string) ScenarioResult {
		if opts.Format != "json" {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "✗ %s\n", name)
			for _, e := range errs {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		return ScenarioResult{Name: name, Pass: false, Errors: errs}
	}
	pass := func(name, note string) ScenarioResult {
		if opts.Format != "json" {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s%s\n", name, note)
		}
		return ScenarioResult{Name: name, Pass: true}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail(filepath.Base(file), fmt.Sprintf("load error: %v", err))
	}
	result, err := harness.Run(cmd.Context(), scenario)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("execution error: %v", err))
	}
	if !result.Pass {
		return fail(scenario.Name, result.Errors...)
	}

	snapshot := harness.Snapshot{ScenarioName: scenario.Name, Trace: result.Trace, Audits: result.Audits}
	data, err := snapshot.Marshal()
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("snapshot error: %v", err))
	}
	goldenPath := filepath.Join(goldenDir, scenario.Name+".golden")

	if opts.Update {
		if err := os.MkdirAll(goldenDir, 0o755); err != nil {
			return fail(scenario.Name, fmt.Sprintf("golden update error: %v", err))
		}
		if err := os.WriteFile(goldenPath, data, 0o644); err != nil {
			return fail(scenario.Name, fmt.Sprintf("golden update error: %v", err))
		}
		return pass(scenario.Name, " (golden updated)")
	}

	golden, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		return pass(scenario.Name, "")
	}
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("golden read error: %v", err))
	}
	if !bytes.Equal(golden, data) {
		return fail(scenario.Name, "snapshot does not match golden file (run with --update to regenerate)")
	}
	return pass(scenario.Name, "")
}

func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "TestFailed",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(response)
}

func outputTestText(cmd *cobra.Command, result TestResult) {
	w := cmd.OutOrStdout()
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
