// Package js loads JavaScript strategy modules and adapts them to the
// engine's strategy interface.
package js

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dop251/goja"

	"github.com/cr0sh/grasshopper/internal/engine"
)

// Module is one compiled strategy script. Every run instantiates a fresh
// goja runtime so a reloaded strategy starts from clean state.
type Module struct {
	Name     string
	Filename string
	Program  *goja.Program
}

// Loader compiles strategy scripts from a directory.
type Loader struct {
	root    string
	modules map[string]*Module
}

// NewLoader constructs a loader rooted at the provided directory.
func NewLoader(root string) (*Loader, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		return nil, fmt.Errorf("strategy loader: root directory required")
	}
	return &Loader{
		root:    filepath.Clean(trimmed),
		modules: make(map[string]*Module),
	}, nil
}

// Refresh clears in-memory modules and compiles the latest scripts from
// disk. Script names derive from filenames: scripts/maker.js loads as
// strategy "maker".
func (l *Loader) Refresh() error {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return fmt.Errorf("strategy loader: read directory %q: %w", l.root, err)
	}

	next := make(map[string]*Module)
	for _, entry := range entries {
		if entry.IsDir() || !isJavaScriptFile(entry.Name()) {
			continue
		}
		fullPath := filepath.Join(l.root, entry.Name())
		// #nosec G304 -- fullPath originates from os.ReadDir within loader root.
		source, err := os.ReadFile(fullPath)
		if err != nil {
			return fmt.Errorf("strategy loader: read %q: %w", fullPath, err)
		}
		prog, err := goja.Compile(fullPath, string(source), true)
		if err != nil {
			return fmt.Errorf("strategy loader: compile %q: %w", fullPath, err)
		}
		name := strings.ToLower(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
		if _, exists := next[name]; exists {
			return fmt.Errorf("strategy loader: duplicate strategy name %q", name)
		}
		next[name] = &Module{Name: name, Filename: entry.Name(), Program: prog}
	}

	l.modules = next
	return nil
}

// Names lists loaded module names, sorted.
func (l *Loader) Names() []string {
	names := make([]string, 0, len(l.modules))
	for name := range l.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve adapts the named module into an engine strategy function.
func (l *Loader) Resolve(name string) (engine.StrategyFunc, bool) {
	module, ok := l.modules[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return strategyFunc(module), true
}

func isJavaScriptFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".js") || strings.HasSuffix(lower, ".mjs")
}
