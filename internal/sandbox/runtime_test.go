package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecuteCapturesOutput(t *testing.T) {
	r := New(Config{})

	res, err := r.Execute(context.Background(), `print("hello")`+"\n"+`print("world")`, time.Second)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Err != "" {
		t.Fatalf("unexpected sandbox error: %s", res.Err)
	}
	if res.Output != "hello\nworld" {
		t.Errorf("Output = %q, want %q", res.Output, "hello\nworld")
	}
}

func TestExecuteResetsOutputBetweenRuns(t *testing.T) {
	r := New(Config{})

	if _, err := r.Execute(context.Background(), `print("first")`, time.Second); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	res, err := r.Execute(context.Background(), `print("second")`, time.Second)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Output != "second" {
		t.Errorf("Output = %q, want %q (buffer must reset)", res.Output, "second")
	}
}

func TestExecuteCapturesRuntimeError(t *testing.T) {
	r := New(Config{})

	res, err := r.Execute(context.Background(), `x = 1 // 0`, time.Second)
	if err != nil {
		t.Fatalf("runtime error must not surface as host error, got %v", err)
	}
	if res.Err == "" {
		t.Error("expected sandbox error for division by zero")
	}
}

func TestExecuteCapturesSyntaxError(t *testing.T) {
	r := New(Config{})

	res, err := r.Execute(context.Background(), `def broken(:`, time.Second)
	if err != nil {
		t.Fatalf("syntax error must not surface as host error, got %v", err)
	}
	if res.Err == "" {
		t.Error("expected sandbox error for invalid syntax")
	}
}

func TestExecuteTimeout(t *testing.T) {
	r := New(Config{})

	src := `
x = 0
while True:
    x += 1
`
	start := time.Now()
	res, err := r.Execute(context.Background(), src, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Err != TimeoutMessage {
		t.Errorf("Err = %q, want %q", res.Err, TimeoutMessage)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation took too long: %v", elapsed)
	}
}

func TestExecuteGlobalsDecoded(t *testing.T) {
	r := New(Config{})

	src := `
def helper(n):
    return n * 2

answer = helper(21)
items = [1, "two", None]
config = {"deep": {"flag": True}}
`
	res, err := r.Execute(context.Background(), src, time.Second)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Err != "" {
		t.Fatalf("unexpected sandbox error: %s", res.Err)
	}

	if got, ok := res.Globals["answer"].(int64); !ok || got != 42 {
		t.Errorf("answer = %v, want 42", res.Globals["answer"])
	}
	items, ok := res.Globals["items"].([]any)
	if !ok || len(items) != 3 {
		t.Fatalf("items = %v, want 3-element list", res.Globals["items"])
	}
	if items[1] != "two" || items[2] != nil {
		t.Errorf("items decoded incorrectly: %v", items)
	}
	if _, present := res.Globals["helper"]; present {
		t.Error("function bindings must not decode into globals")
	}
}

func TestCheckBuiltinAvailable(t *testing.T) {
	r := New(Config{})

	src := `
ok = __tc_check([1, 2, 3], [1, 2, 3])
not_ok = __tc_check("a", "b")
close = __tc_check(1.00001, 1.0)
`
	res, err := r.Execute(context.Background(), src, time.Second)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Err != "" {
		t.Fatalf("unexpected sandbox error: %s", res.Err)
	}
	if res.Globals["ok"] != true {
		t.Error("__tc_check equal lists = false, want true")
	}
	if res.Globals["not_ok"] != false {
		t.Error("__tc_check different strings = true, want false")
	}
	if res.Globals["close"] != true {
		t.Error("__tc_check floats within epsilon = false, want true")
	}
}

func TestInitFailureNotRetried(t *testing.T) {
	r := New(Config{})
	r.initOnce.Do(func() { r.initErr = errInitFailed })

	if _, err := r.Execute(context.Background(), `x = 1`, time.Second); err == nil {
		t.Fatal("expected cached init failure to surface")
	}
	// second caller observes the same failure
	if _, err := r.Execute(context.Background(), `x = 1`, time.Second); err == nil {
		t.Fatal("init failure must not be retried")
	}
}

var errInitFailed = errors.New("interpreter unavailable")
