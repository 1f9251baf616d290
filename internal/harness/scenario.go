package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted editing session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Initial is the document every replica starts from.
	Initial string `yaml:"initial"`

	// Buffer selects the buffer implementation: "runes" (default) or
	// "piece_table".
	Buffer string `yaml:"buffer,omitempty"`

	// Session is an optional fixed session id for the recorded trace.
	Session string `yaml:"session,omitempty"`

	// Replicas lists one or two replicas. Two replicas are connected to
	// each other.
	Replicas []ReplicaSpec `yaml:"replicas"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and the per-step outcomes.
	Assertions []Assertion `yaml:"assertions"`
}

// ReplicaSpec declares one replica.
type ReplicaSpec struct {
	ID    int    `yaml:"id"`
	Label string `yaml:"label"`
}

// Step is one scenario action. Exactly one field must be set.
type Step struct {
	Update  *UpdateStep  `yaml:"update,omitempty"`
	Insert  *InsertStep  `yaml:"insert,omitempty"`
	Delete  *DeleteStep  `yaml:"delete,omitempty"`
	Process *ProcessStep `yaml:"process,omitempty"`
	Deliver *DeliverStep `yaml:"deliver,omitempty"`
}

// UpdateStep replaces a replica's document; instructions are derived.
type UpdateStep struct {
	Replica string `yaml:"replica"`
	Text    string `yaml:"text"`
}

// InsertStep authors a single insert on a replica.
type InsertStep struct {
	Replica string `yaml:"replica"`
	Index   int    `yaml:"index"`
	Text    string `yaml:"text"`
}

// DeleteStep authors a single delete on a replica.
type DeleteStep struct {
	Replica string `yaml:"replica"`
	Index   int    `yaml:"index"`
	Length  int    `yaml:"length"`
}

// ProcessStep drains a replica's incoming queue.
type ProcessStep struct {
	Replica string `yaml:"replica"`
}

// DeliverStep hands a raw wire payload to a replica, bypassing the peer.
// Used to inject out-of-order or malformed messages.
type DeliverStep struct {
	Replica string `yaml:"replica"`
	Payload string `yaml:"payload"`
}

// Step kind names.
const (
	StepUpdate  = "update"
	StepInsert  = "insert"
	StepDelete  = "delete"
	StepProcess = "process"
	StepDeliver = "deliver"
)

// Kind returns the step's kind and target replica label. Kind is empty when
// no field or more than one field is set.
func (s Step) Kind() (kind, replica string) {
	n := 0
	if s.Update != nil {
		kind, replica = StepUpdate, s.Update.Replica
		n++
	}
	if s.Insert != nil {
		kind, replica = StepInsert, s.Insert.Replica
		n++
	}
	if s.Delete != nil {
		kind, replica = StepDelete, s.Delete.Replica
		n++
	}
	if s.Process != nil {
		kind, replica = StepProcess, s.Process.Replica
		n++
	}
	if s.Deliver != nil {
		kind, replica = StepDeliver, s.Deliver.Replica
		n++
	}
	if n != 1 {
		return "", ""
	}
	return kind, replica
}

// Assertion validates scenario outcome.
type Assertion struct {
	// Type is one of text, converged, instructions, outgoing, error.
	Type string `yaml:"type"`

	// Replica is the replica label (text, outgoing).
	Replica string `yaml:"replica,omitempty"`

	// Step is the step index (instructions, error).
	Step *int `yaml:"step,omitempty"`

	// Text is the expected document (text; optional for converged).
	Text *string `yaml:"text,omitempty"`

	// Instructions are the expected derived instructions in compact form
	// (instructions).
	Instructions []string `yaml:"instructions,omitempty"`

	// Count is the expected number of unacknowledged messages (outgoing).
	Count *int `yaml:"count,omitempty"`

	// Code is the expected replica error code (error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertText         = "text"
	AssertConverged    = "converged"
	AssertInstructions = "instructions"
	AssertOutgoing     = "outgoing"
	AssertError        = "error"
)

// Buffer implementation names.
const (
	BufferRunes      = "runes"
	BufferPieceTable = "piece_table"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks structural rules the YAML decoder cannot.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch s.Buffer {
	case "", BufferRunes, BufferPieceTable:
	default:
		return fmt.Errorf("unknown buffer %q", s.Buffer)
	}

	if len(s.Replicas) == 0 || len(s.Replicas) > 2 {
		return fmt.Errorf("replicas: want 1 or 2, got %d", len(s.Replicas))
	}
	labels := map[string]bool{}
	ids := map[int]bool{}
	for i, r := range s.Replicas {
		if r.Label == "" {
			return fmt.Errorf("replicas[%d]: label is required", i)
		}
		if labels[r.Label] {
			return fmt.Errorf("replicas[%d]: duplicate label %q", i, r.Label)
		}
		if ids[r.ID] {
			return fmt.Errorf("replicas[%d]: duplicate id %d", i, r.ID)
		}
		labels[r.Label], ids[r.ID] = true, true
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	for i, step := range s.Steps {
		if err := validateStep(i, step, labels); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, labels, len(s.Steps)); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step, labels map[string]bool) error {
	kind, replica := step.Kind()
	if kind == "" {
		return fmt.Errorf("steps[%d]: exactly one of update, insert, delete, process, deliver is required", index)
	}
	if !labels[replica] {
		return fmt.Errorf("steps[%d]: unknown replica %q", index, replica)
	}
	switch kind {
	case StepInsert:
		if step.Insert.Index < 0 {
			return fmt.Errorf("steps[%d]: insert index must be non-negative", index)
		}
		if step.Insert.Text == "" {
			return fmt.Errorf("steps[%d]: insert text is required", index)
		}
	case StepDelete:
		if step.Delete.Index < 0 || step.Delete.Length <= 0 {
			return fmt.Errorf("steps[%d]: delete needs index >= 0 and length > 0", index)
		}
	case StepDeliver:
		if step.Deliver.Payload == "" {
			return fmt.Errorf("steps[%d]: deliver payload is required", index)
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion, labels map[string]bool, steps int) error {
	needReplica := func() error {
		if !labels[a.Replica] {
			return fmt.Errorf("assertions[%d]: unknown replica %q for %s", index, a.Replica, a.Type)
		}
		return nil
	}
	needStep := func() error {
		if a.Step == nil || *a.Step < 0 || *a.Step >= steps {
			return fmt.Errorf("assertions[%d]: step must index one of %d steps for %s", index, steps, a.Type)
		}
		return nil
	}

	switch a.Type {
	case AssertText:
		if a.Text == nil {
			return fmt.Errorf("assertions[%d]: text is required for text", index)
		}
		return needReplica()
	case AssertConverged:
		if len(labels) < 2 {
			return fmt.Errorf("assertions[%d]: converged needs two replicas", index)
		}
	case AssertInstructions:
		if a.Instructions == nil {
			return fmt.Errorf("assertions[%d]: instructions list is required for instructions", index)
		}
		return needStep()
	case AssertOutgoing:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for outgoing", index)
		}
		return needReplica()
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
		return needStep()
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
