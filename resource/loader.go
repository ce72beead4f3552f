// Package resource loads combatant archetype bundles (YAML, TOML or JSON)
// from a content directory, validates them once at load time and reloads
// them when the files change.
package resource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownArchetype is returned by Get for a name no bundle defines.
	ErrUnknownArchetype = errors.New("resource: unknown archetype")
	// ErrInvalidArchetype wraps every content validation failure.
	ErrInvalidArchetype = errors.New("resource: invalid archetype")
)

// Loader holds the current archetype set. Reads are safe while a reload
// replaces the set.
type Loader struct {
	dir      string
	logger   *zap.Logger
	validate *validator.Validate

	mu         sync.RWMutex
	archetypes map[string]Archetype
	sources    map[string]string // archetype name → file
}

// NewLoader creates a loader for dir. Nothing is read until Load.
func NewLoader(dir string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(archetypeRules, Archetype{})
	return &Loader{
		dir:        dir,
		logger:     logger,
		validate:   v,
		archetypes: make(map[string]Archetype),
		sources:    make(map[string]string),
	}
}

// Dir is the content directory.
func (l *Loader) Dir() string { return l.dir }

// Load reads every bundle in the content directory. The new set replaces the
// old one only if every file decodes and validates.
func (l *Loader) Load() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("read content dir %s: %w", l.dir, err)
	}
	next := make(map[string]Archetype)
	sources := make(map[string]string)
	var errs []error
	for _, ent := range entries {
		if ent.IsDir() || !IsBundleFile(ent.Name()) {
			continue
		}
		path := filepath.Join(l.dir, ent.Name())
		list, err := l.loadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, a := range list {
			if prev, dup := sources[a.Name]; dup {
				errs = append(errs, fmt.Errorf("%w: %q defined in both %s and %s", ErrInvalidArchetype, a.Name, prev, path))
				continue
			}
			next[a.Name] = a
			sources[a.Name] = path
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	l.mu.Lock()
	l.archetypes = next
	l.sources = sources
	l.mu.Unlock()
	l.logger.Info("archetypes loaded", zap.String("dir", l.dir), zap.Int("count", len(next)))
	return nil
}

func (l *Loader) loadFile(path string) ([]Archetype, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	list, err := Decode(path, data)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if err := l.Validate(&list[i]); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return list, nil
}

// Decode parses a bundle, picking the format from the file extension.
// Unknown keys are rejected in every format.
func Decode(path string, data []byte) ([]Archetype, error) {
	var b bundle
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&b); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &b)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("decode %s: unknown keys %v", path, undecoded)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&b); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("decode %s: unsupported extension", path)
	}
	return b.Archetypes, nil
}

// IsBundleFile reports whether path has a bundle extension.
func IsBundleFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".toml", ".json":
		return true
	}
	return false
}

// Validate checks field ranges and variant rules.
func (l *Loader) Validate(a *Archetype) error {
	if err := l.validate.Struct(a); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidArchetype, a.Name, err)
	}
	return nil
}

func archetypeRules(sl validator.StructLevel) {
	a := sl.Current().Interface().(Archetype)
	if a.Rusher != nil && a.Variant != VariantRusher {
		sl.ReportError(a.Rusher, "Rusher", "rusher", "variant_settings", a.Variant)
	}
	if a.Soldier != nil && a.Variant != VariantSoldier {
		sl.ReportError(a.Soldier, "Soldier", "soldier", "variant_settings", a.Variant)
	}
	if a.Instructor != nil && a.Variant != VariantInstructor {
		sl.ReportError(a.Instructor, "Instructor", "instructor", "variant_settings", a.Variant)
	}
	// the instructor's combat behaviour lives in its second phase
	if a.Variant == VariantInstructor && len(a.Phases) == 1 {
		sl.ReportError(a.Phases, "Phases", "phases", "min_phases", "2")
	}
	if a.Movement.RunSpeed < a.Movement.WalkSpeed {
		sl.ReportError(a.Movement.RunSpeed, "RunSpeed", "run_speed", "gtefield", "WalkSpeed")
	}
}

// Add validates a and inserts or replaces it in the current set.
func (l *Loader) Add(a Archetype) error {
	if err := l.Validate(&a); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.archetypes[a.Name] = a
	l.sources[a.Name] = ""
	return nil
}

// Get returns the named archetype.
func (l *Loader) Get(name string) (Archetype, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.archetypes[name]
	if !ok {
		return Archetype{}, fmt.Errorf("%w: %q", ErrUnknownArchetype, name)
	}
	return a, nil
}

// Names lists the loaded archetypes, sorted.
func (l *Loader) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.archetypes))
	for n := range l.archetypes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
