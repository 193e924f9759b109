package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func buildFixtureCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFixture(t, filepath.Join(dir, "basics", "module.yaml"), `
name: Basics
description: Introductory exercises
`)
	writeFixture(t, filepath.Join(dir, "basics", "exercises", "add.yaml"), `
code: add
title: Addition
description: Return the sum of two numbers.
difficulty: easy
entry_point: add
base_xp: 10
timeout_ms: 2000
test_cases:
  - id: t1
    description: small positives
    input: {a: 1, b: 2}
    expected: 3
    category: basic
    visible: true
  - id: t2
    input: {a: -1, b: 1}
    expected: 0
    category: edge
`)
	writeFixture(t, filepath.Join(dir, "basics", "exercises", "palindrome.yaml"), `
title: Palindrome check
difficulty: medium
entry_point: is_palindrome
test_cases:
  - input: {s: "racecar"}
    expected: true
`)
	writeFixture(t, filepath.Join(dir, "strings", "module.yaml"), `
name: Strings
`)
	writeFixture(t, filepath.Join(dir, "strings", "exercises", "broken.yaml"), `
title: [not, a, string
`)
	// directory without module.yaml is ignored
	writeFixture(t, filepath.Join(dir, "notes", "readme.txt"), "not a module")

	return dir
}

func TestLoadFromDir(t *testing.T) {
	loader := NewLoader()
	if err := loader.LoadFromDir(buildFixtureCatalog(t)); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	modules := loader.ListModules()
	if len(modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(modules))
	}

	basics, ok := loader.Module("basics")
	if !ok {
		t.Fatal("basics module not found")
	}
	if basics.Name != "Basics" {
		t.Errorf("expected module name 'Basics', got '%s'", basics.Name)
	}
	if basics.ExerciseCount != 2 {
		t.Errorf("expected 2 exercises in basics, got %d", basics.ExerciseCount)
	}

	// malformed exercise is skipped, module still loads
	strings, ok := loader.Module("strings")
	if !ok {
		t.Fatal("strings module not found")
	}
	if strings.ExerciseCount != 0 {
		t.Errorf("expected 0 exercises in strings, got %d", strings.ExerciseCount)
	}

	add, ok := loader.Exercise("basics/add")
	if !ok {
		t.Fatal("basics/add not found")
	}
	if add.EntryPoint != "add" || add.BaseXP != 10 || add.TimeoutMs != 2000 {
		t.Errorf("unexpected exercise fields: %+v", add)
	}
	if len(add.TestCases) != 2 {
		t.Fatalf("expected 2 test cases, got %d", len(add.TestCases))
	}
	if add.TestCases[0].Input["a"] != 1 || add.TestCases[0].Expected != 3 {
		t.Errorf("unexpected first test case: %+v", add.TestCases[0])
	}

	// code defaults to file name, test IDs auto-assigned
	pal, ok := loader.Exercise("basics/palindrome")
	if !ok {
		t.Fatal("basics/palindrome not found")
	}
	if pal.Code != "palindrome" {
		t.Errorf("expected code 'palindrome', got '%s'", pal.Code)
	}
	if pal.TestCases[0].ID != "t1" {
		t.Errorf("expected auto-assigned test ID 't1', got '%s'", pal.TestCases[0].ID)
	}
}

func TestVisibleTestCaseSplit(t *testing.T) {
	loader := NewLoader()
	if err := loader.LoadFromDir(buildFixtureCatalog(t)); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	add, _ := loader.Exercise("basics/add")
	visible := add.VisibleTestCases()
	if len(visible) != 1 {
		t.Fatalf("expected 1 visible test case, got %d", len(visible))
	}
	if visible[0].ID != "t1" {
		t.Errorf("expected visible case t1, got %s", visible[0].ID)
	}
}

func TestModuleExercisesSorted(t *testing.T) {
	loader := NewLoader()
	if err := loader.LoadFromDir(buildFixtureCatalog(t)); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	exercises := loader.ModuleExercises("basics")
	if len(exercises) != 2 {
		t.Fatalf("expected 2 exercises, got %d", len(exercises))
	}
	if exercises[0].ID != "basics/add" || exercises[1].ID != "basics/palindrome" {
		t.Errorf("exercises out of order: %s, %s", exercises[0].ID, exercises[1].ID)
	}
}

func TestLoadFromMissingDir(t *testing.T) {
	loader := NewLoader()
	if err := loader.LoadFromDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
