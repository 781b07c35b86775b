package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioNotFoundError is returned when a scenario directory holds no
// scenario files.
type ScenarioNotFoundError struct {
	Dir string
}

func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("no scenario files (*.yaml, *.yml) in %s", e.Dir)
}

// SuiteResult summarizes a run over many scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure names a scenario that did not pass and why.
type ScenarioFailure struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path,omitempty"`
	Errors   []string `json:"errors"`
}

// Pass reports whether every scenario passed.
func (r *SuiteResult) Pass() bool {
	return r.Failed == 0
}

// LoadDir loads every scenario file in dir, ordered by file name. Names
// must be unique across the directory.
func LoadDir(dir string) ([]string, []*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, nil, &ScenarioNotFoundError{Dir: dir}
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", p, err)
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, nil, fmt.Errorf("%s: scenario name %q already used by %s", p, s.Name, prev)
		}
		seen[s.Name] = p
		scenarios = append(scenarios, s)
	}
	return paths, scenarios, nil
}

// RunDir runs every scenario in dir. A scenario that cannot run at all
// counts as failed with the run error as its reason.
func RunDir(ctx context.Context, dir string) (*SuiteResult, error) {
	paths, scenarios, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}

	suite := &SuiteResult{Total: len(scenarios)}
	for i, s := range scenarios {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := Run(ctx, s)
		switch {
		case err != nil:
			suite.Failed++
			suite.Failures = append(suite.Failures, ScenarioFailure{Scenario: s.Name, Path: paths[i], Errors: []string{err.Error()}})
		case !result.Pass:
			suite.Failed++
			suite.Failures = append(suite.Failures, ScenarioFailure{Scenario: s.Name, Path: paths[i], Errors: result.Errors})
		default:
			suite.Passed++
		}
	}
	return suite, nil
}
