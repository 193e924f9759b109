// Package catalog loads the exercise hierarchy from a directory of YAML
// files and serves it from memory.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/grading-engine/internal/models"
)

// Loader manages loading and caching of the exercise catalog.
//
// Directory layout, one subdirectory per module:
//
//	catalog/
//	  basics/
//	    module.yaml
//	    exercises/
//	      add.yaml
//	      palindrome.yaml
type Loader struct {
	mu        sync.RWMutex
	modules   map[string]*models.Module
	exercises map[string]*models.Exercise
}

// NewLoader creates an empty catalog loader.
func NewLoader() *Loader {
	return &Loader{
		modules:   make(map[string]*models.Module),
		exercises: make(map[string]*models.Exercise),
	}
}

type moduleFile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type exerciseFile struct {
	Code        string            `yaml:"code"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Difficulty  string            `yaml:"difficulty"`
	EntryPoint  string            `yaml:"entry_point"`
	BaseXP      int               `yaml:"base_xp"`
	TimeoutMs   int               `yaml:"timeout_ms"`
	TestCases   []models.TestCase `yaml:"test_cases"`
}

// LoadFromDir scans dir for module subdirectories and loads every
// exercise beneath them. Malformed modules and exercises are logged and
// skipped; the rest of the catalog still loads.
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading exercise catalog", "dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read catalog directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		moduleDir := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(moduleDir, "module.yaml")); os.IsNotExist(err) {
			continue // not a module directory
		}

		module, err := l.loadModule(entry.Name(), moduleDir)
		if err != nil {
			slog.Warn("failed to load module", "dir", entry.Name(), "error", err)
			continue
		}

		l.mu.Lock()
		l.modules[module.ID] = module
		l.mu.Unlock()

		slog.Info("catalog module loaded", "id", module.ID, "name", module.Name,
			"exercises", module.ExerciseCount)
	}

	return nil
}

// loadModule loads one module.yaml and the exercises/ directory next to it.
func (l *Loader) loadModule(id, dir string) (*models.Module, error) {
	data, err := os.ReadFile(filepath.Join(dir, "module.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to read module.yaml: %w", err)
	}

	var mf moduleFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse module.yaml: %w", err)
	}

	module := &models.Module{
		ID:          id,
		Name:        mf.Name,
		Description: mf.Description,
	}
	if module.Name == "" {
		module.Name = id
	}

	exDir := filepath.Join(dir, "exercises")
	entries, err := os.ReadDir(exDir)
	if err != nil {
		if os.IsNotExist(err) {
			return module, nil
		}
		return nil, fmt.Errorf("failed to read exercises dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		ex, err := l.loadExercise(id, filepath.Join(exDir, entry.Name()))
		if err != nil {
			slog.Warn("failed to load exercise", "module", id, "file", entry.Name(), "error", err)
			continue
		}

		l.mu.Lock()
		l.exercises[ex.ID] = ex
		l.mu.Unlock()
		module.ExerciseCount++
	}

	return module, nil
}

// loadExercise parses one exercise YAML file. The exercise ID is
// "<module>/<code>"; code defaults to the file name.
func (l *Loader) loadExercise(moduleID, path string) (*models.Exercise, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var ef exerciseFile
	if err := yaml.Unmarshal(data, &ef); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if ef.Code == "" {
		ef.Code = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if ef.Title == "" {
		return nil, fmt.Errorf("exercise title is required")
	}
	if len(ef.TestCases) == 0 {
		return nil, fmt.Errorf("exercise has no test cases")
	}
	for i, tc := range ef.TestCases {
		if tc.ID == "" {
			ef.TestCases[i].ID = fmt.Sprintf("t%d", i+1)
		}
	}

	return &models.Exercise{
		ID:          moduleID + "/" + ef.Code,
		Code:        ef.Code,
		ModuleID:    moduleID,
		Title:       ef.Title,
		Description: ef.Description,
		Difficulty:  ef.Difficulty,
		EntryPoint:  ef.EntryPoint,
		BaseXP:      ef.BaseXP,
		TimeoutMs:   ef.TimeoutMs,
		TestCases:   ef.TestCases,
	}, nil
}

// Exercise returns an exercise by its "<module>/<code>" ID.
func (l *Loader) Exercise(id string) (*models.Exercise, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ex, ok := l.exercises[id]
	return ex, ok
}

// ModuleExercises returns all exercises of one module, sorted by ID.
func (l *Loader) ModuleExercises(moduleID string) []*models.Exercise {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*models.Exercise
	for _, ex := range l.exercises {
		if ex.ModuleID == moduleID {
			result = append(result, ex)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Module returns a module by ID.
func (l *Loader) Module(id string) (*models.Module, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.modules[id]
	return m, ok
}

// ListModules returns all loaded modules, sorted by ID.
func (l *Loader) ListModules() []*models.Module {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Module, 0, len(l.modules))
	for _, m := range l.modules {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Add programmatically registers an exercise. Used by tests and seeds.
func (l *Loader) Add(ex *models.Exercise) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exercises[ex.ID] = ex
	if m, ok := l.modules[ex.ModuleID]; ok {
		m.ExerciseCount++
	} else {
		l.modules[ex.ModuleID] = &models.Module{ID: ex.ModuleID, Name: ex.ModuleID, ExerciseCount: 1}
	}
}
