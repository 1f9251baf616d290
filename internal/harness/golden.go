package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tandem/internal/ir"
)

// TraceSnapshot captures the trace and final texts of a scenario run.
type TraceSnapshot struct {
	Name  string
	Texts map[string]string
	Trace []TraceEvent
}

// toCanonicalMap converts the snapshot to the generic form ir.MarshalCanonical
// accepts. Per-kind fields are included only for the kinds that carry them,
// so an empty text after a delete still shows.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq":     ev.Seq,
			"replica": ev.Replica,
			"kind":    ev.Kind,
		}
		if ev.Message != "" {
			m["message"] = ev.Message
		}
		switch ev.Kind {
		case "local":
			m["text"] = ev.Text
		case "ack":
			m["acked"] = ev.Acked
		case "transform":
			m["ops"] = orEmpty(ev.Ops)
			m["rewritten"] = orEmpty(ev.Rewritten)
		case "apply":
			m["ops"] = orEmpty(ev.Ops)
			m["text"] = ev.Text
		case "failure":
			m["error"] = ev.Error
		}
		trace[i] = m
	}

	texts := make(map[string]any, len(s.Texts))
	for k, v := range s.Texts {
		texts[k] = v
	}
	return map[string]any{
		"name":  s.Name,
		"texts": texts,
		"trace": trace,
	}
}

func orEmpty(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// MarshalTrace renders a result as canonical JSON, the golden file format.
func MarshalTrace(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{Name: name, Texts: result.Texts, Trace: result.Trace}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
	return nil
}
