package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/tandem/internal/buffer"
	"github.com/roach88/tandem/internal/ir"
	"github.com/roach88/tandem/internal/replica"
	"github.com/roach88/tandem/internal/store"
	"github.com/roach88/tandem/internal/testutil"
	"github.com/roach88/tandem/internal/transport"
)

// Options configures RunWithOptions.
type Options struct {
	// Store receives the recorded session. Default: a fresh in-memory
	// database, closed when the run ends.
	Store *store.Store

	// SessionIDs names the recorded session. Default: the scenario's
	// session, or testutil.DefaultSessionID. A session already in Store
	// under the same id is replaced.
	SessionIDs store.SessionIDGenerator

	// Logger receives replica events at Debug. Default: discard.
	Logger *slog.Logger
}

// Harness executes one scenario.
type Harness struct {
	store    *store.Store
	recorder *store.Recorder
	logger   *slog.Logger
	replicas map[string]*replica.State
	order    []string
}

// Run executes a scenario against a fresh in-memory store with a
// deterministic clock and session id.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithOptions(context.Background(), scenario, Options{})
}

// RunWithOptions executes a scenario and returns the result.
//
// Execution flow:
//  1. Open the store and write the session
//  2. Build the replicas, each observed by the recorder
//  3. Execute steps, keeping step errors in the result
//  4. Read the trace back from the store
//  5. Evaluate assertions
//
// The returned error reports infrastructure failures; scenario failures are
// reported through Result.Pass and Result.Errors.
func RunWithOptions(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	st := opts.Store
	if st == nil {
		var err error
		if st, err = store.Open(":memory:"); err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}
	ids := opts.SessionIDs
	if ids == nil {
		ids = testutil.NewFixedSessionGenerator(scenario.Session)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sessionID := ids.Generate()
	if _, err := st.ResetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := st.WriteSession(ctx, store.Session{
		ID:          sessionID,
		Name:        scenario.Name,
		InitialText: scenario.Initial,
	}); err != nil {
		return nil, err
	}

	h := &Harness{
		store:    st,
		recorder: store.NewRecorder(ctx, st, sessionID, testutil.NewDeterministicClock()),
		logger:   logger,
		replicas: map[string]*replica.State{},
	}
	h.build(scenario)

	result := NewResult()
	result.SessionID = sessionID
	for i, step := range scenario.Steps {
		result.Steps = append(result.Steps, h.execute(ctx, i, step))
	}
	if err := h.recorder.Err(); err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}

	if err := h.collect(ctx, sessionID, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	for _, msg := range unexpectedStepErrors(result, scenario.Assertions) {
		result.AddError(msg)
	}

	logger.Info("scenario completed", "name", scenario.Name, "session", sessionID, "pass", result.Pass)
	return result, nil
}

// build creates the replicas. With two replicas each publishes on its own
// in-memory channel and the other subscribes to it.
func (h *Harness) build(scenario *Scenario) {
	factory := buffer.NewRunes
	if scenario.Buffer == BufferPieceTable {
		factory = buffer.NewPieceTableBuffer
	}

	channels := make([]*transport.Memory, len(scenario.Replicas))
	for i, spec := range scenario.Replicas {
		var ch replica.Channel
		if len(scenario.Replicas) == 2 {
			channels[i] = transport.NewMemory(transport.WithWireEncoding())
			ch = channels[i]
		}
		h.replicas[spec.Label] = replica.New(spec.ID, spec.Label, ch,
			replica.WithText(scenario.Initial),
			replica.WithBuffer(factory),
			replica.WithObserver(h.recorder),
			replica.WithLogger(h.logger),
		)
		h.order = append(h.order, spec.Label)
	}

	if len(scenario.Replicas) == 2 {
		a, b := h.replicas[h.order[0]], h.replicas[h.order[1]]
		// Memory.Subscribe only fails for a nil handler.
		_, _ = replica.Connect(channels[0], b)
		_, _ = replica.Connect(channels[1], a)
	}
}

func (h *Harness) execute(ctx context.Context, index int, step Step) StepResult {
	kind, label := step.Kind()
	res := StepResult{Index: index, Kind: kind, Replica: label, Instructions: []string{}}
	r := h.replicas[label]

	var (
		ops []ir.Instruction
		err error
	)
	switch kind {
	case StepUpdate:
		ops, err = r.LocalUpdate(ctx, step.Update.Text)
	case StepInsert:
		ops = []ir.Instruction{ir.Insert{Index: step.Insert.Index, Text: step.Insert.Text}}
		err = r.ApplyLocal(ctx, ops)
	case StepDelete:
		ops = []ir.Instruction{ir.Delete{Index: step.Delete.Index, Length: step.Delete.Length}}
		err = r.ApplyLocal(ctx, ops)
	case StepProcess:
		err = r.ProcessReceived()
	case StepDeliver:
		err = r.ReceiveWire([]byte(step.Deliver.Payload))
	}

	if err != nil {
		res.Code = string(replica.CodeOf(err))
		res.Error = err.Error()
		h.logger.Debug("step failed", "step", index, "kind", kind, "replica", label, "error", err)
		return res
	}
	res.Instructions = ir.Ops(ops).Strings()
	return res
}

// collect fills the trace and final replica state.
func (h *Harness) collect(ctx context.Context, sessionID string, result *Result) error {
	events, err := h.store.ReadEvents(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("read trace: %w", err)
	}
	for _, ev := range events {
		te := TraceEvent{
			Seq:       ev.Seq,
			Replica:   ev.Label,
			Kind:      ev.Kind,
			Ops:       ev.Ops,
			Rewritten: ev.Rewritten,
			Acked:     ev.Acked,
			Text:      ev.Text,
			Error:     ev.Error,
		}
		if ev.Message != nil {
			te.Message = ev.Message.String()
		}
		result.Trace = append(result.Trace, te)
	}

	for _, label := range h.order {
		snap := h.replicas[label].Snapshot()
		result.Texts[label] = snap.Text
		result.Outgoing[label] = len(snap.Outgoing)
	}
	return nil
}
