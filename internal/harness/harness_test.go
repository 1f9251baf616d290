package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tandem/internal/store"
)

func TestRun_Scenarios(t *testing.T) {
	files, err := FindScenarioFiles("testdata/scenarios")
	require.NoError(t, err)

	for _, path := range files {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Golden(t *testing.T) {
	for _, name := range []string{"concurrent_inserts", "insert_delete", "single_replica_derivation"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata/scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/straddling_insert.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalTrace(scenario.Name, first)
	require.NoError(t, err)
	b, err := MarshalTrace(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_StepResults(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/single_replica_derivation.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, StepResult{
		Index: 1, Kind: StepUpdate, Replica: "A",
		Instructions: []string{"d,5,1", "i,5,wa"},
	}, result.Steps[1])
	assert.Equal(t, map[string]string{"A": "this was test"}, result.Texts)
	assert.Equal(t, map[string]int{"A": 3}, result.Outgoing)
}

func TestRun_FailingAssertions(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_expectations
initial: "12345"
replicas:
  - {id: 123, label: A}
  - {id: 124, label: B}
steps:
  - update: {replica: A, text: "1b2345"}
  - update: {replica: B, text: "1a2345"}
  - process: {replica: A}
  - process: {replica: B}
assertions:
  - {type: converged, text: "1ab2345"}
  - {type: text, replica: B, text: "nope"}
  - {type: instructions, step: 0, instructions: ["i,0,b"]}
  - {type: outgoing, replica: B, count: 0}
  - {type: error, step: 2, code: APPLY_FAILED}
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "1ab2345")
	assert.Contains(t, result.Errors[0], "Full trace")
}

func TestRun_UnexpectedStepError(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: unexpected
initial: "abc"
replicas:
  - {id: 1, label: A}
steps:
  - delete: {replica: A, index: 2, length: 5}
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")
	assert.Equal(t, "APPLY_FAILED", result.Steps[0].Code)
	assert.Equal(t, "abc", result.Texts["A"])
}

func TestRun_TraceRecordsFailure(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/causal_gap.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, "failure", last.Kind)
	assert.Equal(t, "B", last.Replica)
	assert.Contains(t, last.Error, "CAUSALITY_VIOLATION")
}

func TestRunWithOptions_PersistentStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	defer st.Close()

	scenario, err := LoadScenario("testdata/scenarios/concurrent_inserts.yaml")
	require.NoError(t, err)

	ids := store.NewSequenceGenerator("run-1", "run-2")
	for i := 0; i < 2; i++ {
		result, err := RunWithOptions(ctx, scenario, Options{Store: st, SessionIDs: ids})
		require.NoError(t, err)
		assert.True(t, result.Pass)
	}

	sessions, err := st.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "concurrent_inserts", sessions[0].Name)

	replay, err := st.Replay(ctx, "run-2")
	require.NoError(t, err)
	assert.Empty(t, replay.Mismatches)
	assert.True(t, replay.Converged())
}

func TestRunWithOptions_RerunReplacesSession(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	defer st.Close()

	first, err := LoadScenario("testdata/scenarios/concurrent_inserts.yaml")
	require.NoError(t, err)
	second, err := LoadScenario("testdata/scenarios/insert_delete.yaml")
	require.NoError(t, err)

	ids := store.NewSequenceGenerator("shared", "shared")
	_, err = RunWithOptions(ctx, first, Options{Store: st, SessionIDs: ids})
	require.NoError(t, err)
	want, err := RunWithOptions(ctx, second, Options{Store: st, SessionIDs: ids})
	require.NoError(t, err)
	assert.True(t, want.Pass)

	sessions, err := st.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "insert_delete", sessions[0].Name)

	events, err := st.ReadEvents(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, events, len(want.Trace))
	last := events[len(events)-1]
	assert.Equal(t, want.Trace[len(want.Trace)-1].Text, last.Text)
}

func TestRunSuite(t *testing.T) {
	result, err := RunSuite(context.Background(), "testdata/scenarios", Options{})
	require.NoError(t, err)
	assert.Equal(t, result.TotalScenarios, result.Passed, "failures: %+v", result.Failures)
	assert.Zero(t, result.Failed)
}

func TestRunSuite_ReportsInvalid(t *testing.T) {
	result, err := RunSuite(context.Background(), "testdata/invalid", Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalScenarios)
	assert.Equal(t, 3, result.Failed)
	for _, f := range result.Failures {
		assert.Contains(t, f.Error, "schema")
	}
}
