package spikenet

import (
	"fmt"
	"io"
	"math"
	"os"

	"cogentcore.org/core/base/errors"
)

// DiagnosticSink is where fatal lifecycle/backend/shape messages are
// written before the caller terminates the process. The engine itself
// never calls os.Exit -- only cmd/spikesim does, so the library stays
// testable.
var DiagnosticSink io.Writer = os.Stderr

// LifecycleError reports API misuse: Δt set after a synapse exists,
// a synapse added with no bundle, a group added with no population.
type LifecycleError struct {
	Op  string
	Msg string
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("spikenet: lifecycle error in %s: %s", e.Op, e.Msg)
}

// BackendError reports resource allocation or kernel-launch failure.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("spikenet: backend error in %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ShapeError reports a synapse parameter referencing a group ID that was
// never added.
type ShapeError struct {
	Op  string
	ID  GroupID
	Msg string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("spikenet: shape error in %s: group %d: %s", e.Op, e.ID, e.Msg)
}

// reportFatal writes a single descriptive message to DiagnosticSink for
// LifecycleError, BackendError, and ShapeError. It does not terminate
// the process -- callers that want fatal-and-exit behavior should check
// the returned error and exit themselves (see cmd/spikesim).
func reportFatal(err error) error {
	fmt.Fprintln(DiagnosticSink, errors.Log(err))
	return err
}

// ModelDivergence is the soft failure mode: NaN/Inf detected in neuron
// state. Monitors record it; the engine continues.
type ModelDivergence struct {
	Neuron int
	Field  string
	Time   float32
}

func (e *ModelDivergence) Error() string {
	return fmt.Sprintf("spikenet: model divergence: neuron %d field %s at t=%g", e.Neuron, e.Field, e.Time)
}

// nonFinite reports whether x is NaN or +/-Inf, the condition a monitor
// treats as model divergence.
func nonFinite(x float32) bool {
	f := float64(x)
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// reportDivergence records a soft ModelDivergence to DiagnosticSink. It
// never stops the run -- the engine keeps stepping, same as any other
// monitor observation.
func reportDivergence(d *ModelDivergence) {
	fmt.Fprintln(DiagnosticSink, d)
}
