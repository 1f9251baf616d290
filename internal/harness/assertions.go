package harness

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", ev.Seq, ev.Replica, ev.Kind)
			if ev.Message != "" {
				fmt.Fprintf(&buf, " %s", ev.Message)
			}
			if ev.Text != "" {
				fmt.Fprintf(&buf, " -> %q", ev.Text)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the result and returns
// one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertText:
		return assertText(result, a)
	case AssertConverged:
		return assertConverged(result, a)
	case AssertInstructions:
		return assertInstructions(result, a)
	case AssertOutgoing:
		return assertOutgoing(result, a)
	case AssertError:
		return assertError(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertText(result *Result, a Assertion) error {
	got, ok := result.Texts[a.Replica]
	if !ok {
		return fmt.Errorf("unknown replica %q", a.Replica)
	}
	if got != *a.Text {
		return &AssertionError{
			Type:     AssertText,
			Expected: fmt.Sprintf("replica %s text %q", a.Replica, *a.Text),
			Actual:   fmt.Sprintf("%q", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertConverged(result *Result, a Assertion) error {
	labels := make([]string, 0, len(result.Texts))
	for label := range result.Texts {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var texts []string
	for _, label := range labels {
		texts = append(texts, fmt.Sprintf("%s=%q", label, result.Texts[label]))
	}
	for _, label := range labels[1:] {
		if result.Texts[label] != result.Texts[labels[0]] {
			return &AssertionError{
				Type:     AssertConverged,
				Expected: "all replicas hold the same text",
				Actual:   strings.Join(texts, ", "),
				Trace:    result.Trace,
			}
		}
	}
	if a.Text != nil && result.Texts[labels[0]] != *a.Text {
		return &AssertionError{
			Type:     AssertConverged,
			Expected: fmt.Sprintf("converged text %q", *a.Text),
			Actual:   strings.Join(texts, ", "),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertInstructions(result *Result, a Assertion) error {
	step, err := stepResult(result, a)
	if err != nil {
		return err
	}
	if !slices.Equal(step.Instructions, a.Instructions) {
		return &AssertionError{
			Type:     AssertInstructions,
			Expected: fmt.Sprintf("step %d instructions %v", *a.Step, a.Instructions),
			Actual:   fmt.Sprintf("%v", step.Instructions),
		}
	}
	return nil
}

func assertOutgoing(result *Result, a Assertion) error {
	got, ok := result.Outgoing[a.Replica]
	if !ok {
		return fmt.Errorf("unknown replica %q", a.Replica)
	}
	if got != *a.Count {
		return &AssertionError{
			Type:     AssertOutgoing,
			Expected: fmt.Sprintf("replica %s has %d unacknowledged messages", a.Replica, *a.Count),
			Actual:   fmt.Sprintf("%d", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertError(result *Result, a Assertion) error {
	step, err := stepResult(result, a)
	if err != nil {
		return err
	}
	if step.Code != a.Code {
		actual := "no error"
		if step.Error != "" {
			actual = step.Error
		}
		return &AssertionError{
			Type:     AssertError,
			Expected: fmt.Sprintf("step %d fails with %s", *a.Step, a.Code),
			Actual:   actual,
		}
	}
	return nil
}

func stepResult(result *Result, a Assertion) (StepResult, error) {
	if a.Step == nil || *a.Step < 0 || *a.Step >= len(result.Steps) {
		return StepResult{}, fmt.Errorf("%s: step out of range", a.Type)
	}
	return result.Steps[*a.Step], nil
}

// unexpectedStepErrors reports failed steps that no error assertion covers.
func unexpectedStepErrors(result *Result, assertions []Assertion) []string {
	expected := map[int]bool{}
	for _, a := range assertions {
		if a.Type == AssertError && a.Step != nil {
			expected[*a.Step] = true
		}
	}
	var errs []string
	for _, step := range result.Steps {
		if step.Error != "" && !expected[step.Index] {
			errs = append(errs, fmt.Sprintf("step %d (%s %s): unexpected error: %s",
				step.Index, step.Kind, step.Replica, step.Error))
		}
	}
	return errs
}
