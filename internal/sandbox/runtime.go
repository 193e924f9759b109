// Package sandbox owns the embedded Starlark interpreter that executes
// untrusted learner submissions.
//
// The runtime is an explicitly owned handle: callers construct one and
// inject it where execution is needed, rather than reaching for ambient
// global state. One runtime serializes all executions because the output
// capture buffer is shared interpreter state.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/terra-clan/grading-engine/internal/codec"
)

// TimeoutMessage is the error string surfaced when execution exceeds its
// time budget.
const TimeoutMessage = "execution time exceeded"

// CheckBuiltinName is the predeclared equivalence builtin available to
// sandboxed source. The suite runner splices calls to it so the grading
// comparison runs inside the same sandbox call as the user code.
const CheckBuiltinName = "__tc_check"

// ExecResult is the outcome of one sandbox execution. A runtime error in
// the sandboxed source is reported through Err, never as a host error.
type ExecResult struct {
	// Output is the captured print output, trimmed.
	Output string
	// Err is the sandbox-level error, empty on success.
	Err string
	// DurationMs is the wall-clock execution time.
	DurationMs int64
	// Globals holds the decoded top-level data bindings of the executed
	// source. Bindings that cannot be represented as data (functions,
	// builtins) are absent.
	Globals map[string]any
}

// Config holds runtime tuning parameters.
type Config struct {
	// MaxSteps bounds the interpreter step count per execution.
	// Zero means unbounded.
	MaxSteps uint64
}

// Runtime is the shared, lazily-initialized interpreter handle.
//
// Initialization happens on the first Execute call; concurrent first
// callers share the same in-flight initialization, and an initialization
// failure is cached and surfaced to every caller without retrying.
//
// Timeout enforcement uses starlark.Thread.Cancel, which preempts the
// interpreter at its next safepoint. Cancellation is therefore effectively
// immediate for pure Starlark code; a long-running host builtin could
// still finish its current call before the cancellation lands.
type Runtime struct {
	cfg Config

	initOnce sync.Once
	initErr  error

	mu          sync.Mutex // serializes executions; output buffer is shared
	output      strings.Builder
	predeclared starlark.StringDict
	fileOpts    *syntax.FileOptions
}

// New creates a runtime handle. No interpreter state is built until the
// first execution.
func New(cfg Config) *Runtime {
	return &Runtime{cfg: cfg}
}

func (r *Runtime) setup() error {
	r.fileOpts = &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}

	r.predeclared = starlark.StringDict{
		CheckBuiltinName: starlark.NewBuiltin(CheckBuiltinName, checkBuiltin),
	}

	slog.Info("sandbox runtime initialized", "max_steps", r.cfg.MaxSteps)
	return nil
}

// Ready forces initialization and reports whether the runtime is usable.
func (r *Runtime) Ready() error {
	r.initOnce.Do(func() { r.initErr = r.setup() })
	return r.initErr
}

// Execute runs the given source against a fresh set of globals, capturing
// print output and racing the run against the timeout.
//
// The returned error is reserved for host-level failures (initialization
// failure, canceled context before start). Everything that goes wrong
// inside the sandbox (syntax errors, runtime exceptions, timeout) is
// reported via ExecResult.Err.
func (r *Runtime) Execute(ctx context.Context, source string, timeout time.Duration) (*ExecResult, error) {
	if err := r.Ready(); err != nil {
		return nil, fmt.Errorf("sandbox init: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.output.Reset()

	thread := &starlark.Thread{
		Name: "submission",
		Print: func(_ *starlark.Thread, msg string) {
			r.output.WriteString(msg)
			r.output.WriteByte('\n')
		},
	}
	if r.cfg.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(r.cfg.MaxSteps)
	}

	if timeout > 0 {
		timer := time.AfterFunc(timeout, func() { thread.Cancel(TimeoutMessage) })
		defer timer.Stop()
	}
	stop := context.AfterFunc(ctx, func() { thread.Cancel("context canceled") })
	defer stop()

	start := time.Now()
	globals, err := starlark.ExecFileOptions(r.fileOpts, thread, "submission.star", source, r.predeclared)
	elapsed := time.Since(start)

	res := &ExecResult{
		Output:     strings.TrimSpace(r.output.String()),
		DurationMs: elapsed.Milliseconds(),
		Globals:    decodeGlobals(globals),
	}

	if err != nil {
		res.Err = sandboxError(err)
	}

	return res, nil
}

// sandboxError normalizes an interpreter error into the user-facing
// error string.
func sandboxError(err error) string {
	msg := err.Error()
	if strings.Contains(msg, TimeoutMessage) {
		return TimeoutMessage
	}
	if evalErr, ok := err.(*starlark.EvalError); ok {
		return evalErr.Msg
	}
	return msg
}

// checkBuiltin implements the predeclared equivalence check. It decodes
// both operands into plain data values and applies the grading comparator.
func checkBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var actual, expected starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &actual, &expected); err != nil {
		return nil, err
	}

	av, aok := DecodeValue(actual)
	ev, eok := DecodeValue(expected)
	if !aok || !eok {
		return starlark.False, nil
	}
	return starlark.Bool(codec.Equivalent(av, ev)), nil
}

// DecodeValue converts a Starlark value into a JSON-shaped Go value.
// The second return is false for values with no data representation
// (functions, builtins, opaque types).
func DecodeValue(v starlark.Value) (any, bool) {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil, true
	case starlark.Bool:
		return bool(x), true
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i, true
		}
		f, _ := starlark.AsFloat(x)
		return f, true
	case starlark.Float:
		return float64(x), true
	case starlark.String:
		return x.GoString(), true
	case *starlark.List:
		return decodeSequence(x.Len(), x.Index)
	case starlark.Tuple:
		return decodeSequence(x.Len(), x.Index)
	case *starlark.Dict:
		out := make(map[string]any, x.Len())
		for _, item := range x.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, false
			}
			val, ok := DecodeValue(item[1])
			if !ok {
				return nil, false
			}
			out[key.GoString()] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func decodeSequence(n int, index func(int) starlark.Value) (any, bool) {
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		elem, ok := DecodeValue(index(i))
		if !ok {
			return nil, false
		}
		out = append(out, elem)
	}
	return out, true
}

func decodeGlobals(globals starlark.StringDict) map[string]any {
	out := make(map[string]any, len(globals))
	for name, v := range globals {
		if decoded, ok := DecodeValue(v); ok {
			out[name] = decoded
		}
	}
	return out
}
