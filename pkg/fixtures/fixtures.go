// Package fixtures loads declarative module overrides from YAML and applies
// them to a barney.System.
//
//	overrides:
//	  ./config: {port: 8080}
//	  fs: {readFile: stub}
//	missing:
//	  - optional-dep
//
// Every reference under overrides is hooked with its decoded value; every
// reference under missing is intercepted with barney.NotFound.
package fixtures

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	barney "github.com/goliatone/go-barney"
)

// Set is a parsed fixture file.
type Set struct {
	Overrides map[string]any `yaml:"overrides"`
	Missing   []string       `yaml:"missing"`

	applied []applied
}

type applied struct {
	system      *barney.System
	references  []string
	previous    map[string]any
	interceptor map[string]barney.Interceptor
}

// Parse decodes a fixture document.
func Parse(data []byte) (*Set, error) {
	set := &Set{}
	if err := yaml.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("fixtures: parse: %w", err)
	}
	for reference := range set.Overrides {
		if reference == "" {
			return nil, fmt.Errorf("fixtures: overrides: %w", barney.ErrInvalidTarget)
		}
	}
	for _, reference := range set.Missing {
		if reference == "" {
			return nil, fmt.Errorf("fixtures: missing: %w", barney.ErrInvalidTarget)
		}
	}
	return set, nil
}

// LoadFile reads and parses the fixture document at path.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixtures: read %s: %w", path, err)
	}
	return Parse(data)
}

// References returns every reference named by the set, sorted.
func (s *Set) References() []string {
	refs := make([]string, 0, len(s.Overrides)+len(s.Missing))
	for reference := range s.Overrides {
		refs = append(refs, reference)
	}
	refs = append(refs, s.Missing...)
	sort.Strings(refs)
	return refs
}

// Apply registers the set's overrides and missing modules on system. On
// failure the registrations already made are rolled back.
func (s *Set) Apply(system *barney.System) error {
	if system == nil {
		return errors.New("fixtures: system is required")
	}
	record := applied{
		system:      system,
		previous:    make(map[string]any),
		interceptor: make(map[string]barney.Interceptor),
	}

	overrides := make([]string, 0, len(s.Overrides))
	for reference := range s.Overrides {
		overrides = append(overrides, reference)
	}
	sort.Strings(overrides)
	for _, reference := range overrides {
		if identity, err := system.Canonical(reference); err == nil {
			if value, ok := system.Registry().Override(identity); ok {
				record.previous[reference] = value
			}
		}
		if err := system.Hook(reference, s.Overrides[reference]); err != nil {
			record.revert()
			return fmt.Errorf("fixtures: override %q: %w", reference, err)
		}
		record.references = append(record.references, reference)
	}
	for _, reference := range s.Missing {
		missing := barney.Fails(barney.NotFoundFor(reference))
		if err := system.InterceptTarget(reference, missing); err != nil {
			record.revert()
			return fmt.Errorf("fixtures: missing %q: %w", reference, err)
		}
		record.interceptor[reference] = missing
	}
	s.applied = append(s.applied, record)
	return nil
}

// Revert removes everything Apply registered, most recent application
// first. Overrides that Apply replaced are put back.
func (s *Set) Revert() {
	for i := len(s.applied) - 1; i >= 0; i-- {
		s.applied[i].revert()
	}
	s.applied = nil
}

func (a applied) revert() {
	for _, reference := range a.references {
		if value, ok := a.previous[reference]; ok {
			_ = a.system.Hook(reference, value)
			continue
		}
		_ = a.system.Unhook(reference)
	}
	for reference, interceptor := range a.interceptor {
		_ = a.system.RemoveTargetInterceptor(reference, interceptor)
	}
}
