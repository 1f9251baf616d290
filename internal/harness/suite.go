package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	TotalScenarios int            `json:"total_scenarios"`
	Passed         int            `json:"passed"`
	Failed         int            `json:"failed"`
	Failures       []SuiteFailure `json:"failures,omitempty"`
}

// SuiteFailure is one scenario that failed to load, run or pass.
type SuiteFailure struct {
	ScenarioPath string `json:"scenario_path"`
	Error        string `json:"error"`
}

// FindScenarioFiles returns every .yaml and .yml file under dir, sorted.
func FindScenarioFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		ext := filepath.Ext(path)
		if !info.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// RunSuite loads and runs every scenario file under dir.
//
// For each file:
//  1. Validate it against the CUE schema
//  2. Load it
//  3. Run it with opts
//  4. Record pass or failure
func RunSuite(ctx context.Context, dir string, opts Options) (*SuiteResult, error) {
	files, err := FindScenarioFiles(dir)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{}
	fail := func(path, format string, args ...any) {
		result.Failed++
		result.Failures = append(result.Failures, SuiteFailure{
			ScenarioPath: path,
			Error:        fmt.Sprintf(format, args...),
		})
	}

	for _, path := range files {
		result.TotalScenarios++

		if err := ValidateScenarioFile(path); err != nil {
			fail(path, "schema: %v", err)
			continue
		}
		scenario, err := LoadScenario(path)
		if err != nil {
			fail(path, "failed to load scenario: %v", err)
			continue
		}
		runResult, err := RunWithOptions(ctx, scenario, opts)
		if err != nil {
			fail(path, "scenario execution failed: %v", err)
			continue
		}
		if !runResult.Pass {
			fail(path, "scenario assertions failed: %v", runResult.Errors)
			continue
		}
		result.Passed++
	}
	return result, nil
}
