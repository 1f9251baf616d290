package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/concurrent_inserts.yaml")
	require.NoError(t, err)

	assert.Equal(t, "concurrent_inserts", s.Name)
	assert.Equal(t, "12345", s.Initial)
	assert.Equal(t, []ReplicaSpec{{ID: 123, Label: "A"}, {ID: 124, Label: "B"}}, s.Replicas)
	require.Len(t, s.Steps, 4)

	kind, replica := s.Steps[0].Kind()
	assert.Equal(t, StepUpdate, kind)
	assert.Equal(t, "A", replica)
	assert.Equal(t, "1b2345", s.Steps[0].Update.Text)

	require.Len(t, s.Assertions, 4)
	assert.Equal(t, AssertConverged, s.Assertions[2].Type)
	assert.Equal(t, "1ba2345", *s.Assertions[2].Text)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/does-not-exist.yaml")
	assert.Error(t, err)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	_, err := LoadScenario("testdata/invalid/unknown_field.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "speed")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "replicas: [{id: 1, label: A}]\nsteps: [{process: {replica: A}}]\n",
			wantErr: "name is required",
		},
		{
			name:    "no replicas",
			yaml:    "name: x\nsteps: [{process: {replica: A}}]\n",
			wantErr: "want 1 or 2",
		},
		{
			name:    "three replicas",
			yaml:    "name: x\nreplicas: [{id: 1, label: A}, {id: 2, label: B}, {id: 3, label: C}]\nsteps: [{process: {replica: A}}]\n",
			wantErr: "want 1 or 2",
		},
		{
			name:    "duplicate label",
			yaml:    "name: x\nreplicas: [{id: 1, label: A}, {id: 2, label: A}]\nsteps: [{process: {replica: A}}]\n",
			wantErr: "duplicate label",
		},
		{
			name:    "duplicate id",
			yaml:    "name: x\nreplicas: [{id: 1, label: A}, {id: 1, label: B}]\nsteps: [{process: {replica: A}}]\n",
			wantErr: "duplicate id",
		},
		{
			name:    "no steps",
			yaml:    "name: x\nreplicas: [{id: 1, label: A}]\n",
			wantErr: "at least one step",
		},
		{
			name:    "empty step",
			yaml:    "name: x\nreplicas: [{id: 1, label: A}]\nsteps: [{}]\n",
			wantErr: "exactly one of",
		},
		{
			name:    "two actions in one step",
			yaml:    "name: x\nreplicas: [{id: 1, label: A}]\nsteps: [{process: {replica: A}, update: {replica: A, text: y}}]\n",
			wantErr: "exactly one of",
		},
		{
			name:    "unknown replica",
			yaml:    "name: x\nreplicas: [{id: 1, label: A}]\nsteps: [{process: {replica: Z}}]\n",
			wantErr: "unknown replica",
		},
		{
			name:    "zero length delete",
			yaml:    "name: x\nreplicas: [{id: 1, label: A}]\nsteps: [{delete: {replica: A, index: 0, length: 0}}]\n",
			wantErr: "length > 0",
		},
		{
			name:    "unknown buffer",
			yaml:    "name: x\nbuffer: rope\nreplicas: [{id: 1, label: A}]\nsteps: [{process: {replica: A}}]\n",
			wantErr: "unknown buffer",
		},
		{
			name:    "assertion step out of range",
			yaml:    "name: x\nreplicas: [{id: 1, label: A}]\nsteps: [{process: {replica: A}}]\nassertions: [{type: error, step: 4, code: APPLY_FAILED}]\n",
			wantErr: "step must index",
		},
		{
			name:    "converged with one replica",
			yaml:    "name: x\nreplicas: [{id: 1, label: A}]\nsteps: [{process: {replica: A}}]\nassertions: [{type: converged}]\n",
			wantErr: "two replicas",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\nreplicas: [{id: 1, label: A}]\nsteps: [{process: {replica: A}}]\nassertions: [{type: vibes}]\n",
			wantErr: "unknown assertion type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateScenarioFile_Valid(t *testing.T) {
	files, err := FindScenarioFiles("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		t.Run(filepath.Base(path), func(t *testing.T) {
			assert.NoError(t, ValidateScenarioFile(path))
		})
	}
}

func TestValidateScenarioFile_Invalid(t *testing.T) {
	for _, name := range []string{"unknown_field.yaml", "bad_step.yaml", "bad_code.yaml"} {
		t.Run(name, func(t *testing.T) {
			err := ValidateScenarioFile(filepath.Join("testdata/invalid", name))
			require.Error(t, err)
			var se *SchemaError
			assert.ErrorAs(t, err, &se)
			assert.NotEmpty(t, se.Issues)
		})
	}
}

func TestValidateScenarioFile_SchemaOnlyCatchesErrorCodes(t *testing.T) {
	// Structural validation accepts any non-empty code; the schema pins the
	// set of replica error codes.
	_, err := LoadScenario("testdata/invalid/bad_code.yaml")
	assert.NoError(t, err)
	assert.Error(t, ValidateScenarioFile("testdata/invalid/bad_code.yaml"))
}

func TestValidateScenarioData_BadYAML(t *testing.T) {
	err := ValidateScenarioData("broken.yaml", []byte("name: [unterminated"))
	assert.Error(t, err)
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	files, err := FindScenarioFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, files)
}
