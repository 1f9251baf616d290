package harness

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed scenario.cue
var scenarioSchema string

// SchemaError is a scenario document that does not satisfy the CUE schema.
type SchemaError struct {
	Path   string
	Issues []string
}

func (e *SchemaError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("%s: %s", e.Path, e.Issues[0])
	}
	return fmt.Sprintf("%s: %d schema violations, first: %s", e.Path, len(e.Issues), e.Issues[0])
}

// ValidateScenarioFile checks a scenario file against the embedded CUE
// schema. It complements LoadScenario: CUE checks value shapes and ranges
// declaratively, LoadScenario checks cross references such as replica
// labels and step indices.
func ValidateScenarioFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ValidateScenarioData(path, data)
}

// ValidateScenarioData is ValidateScenarioFile for in-memory YAML. name is
// used in error positions.
func ValidateScenarioData(name string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(scenarioSchema, cue.Filename("scenario.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile scenario schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Scenario"))

	file, err := cueyaml.Extract(name, data)
	if err != nil {
		return &SchemaError{Path: name, Issues: []string{err.Error()}}
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return &SchemaError{Path: name, Issues: cueIssues(err)}
	}

	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return &SchemaError{Path: name, Issues: cueIssues(err)}
	}
	return nil
}

func cueIssues(err error) []string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return []string{err.Error()}
	}
	issues := make([]string, len(errs))
	for i, e := range errs {
		issues[i] = e.Error()
	}
	return issues
}
