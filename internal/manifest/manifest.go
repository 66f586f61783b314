// Package manifest describes the modules of a build and stands in for the
// capability plugins that configure them.
//
// A manifest lists each module with its parent, the capability its build
// plugin attaches (if any), the defaults the capability starts from, the
// values the capability writes after attaching, and the library dependencies
// it declares:
//
//	root: android
//	modules:
//	  - name: app
//	    capability: com.android.application
//	    defaults: {compileSdk: 34, targetSdk: 34, minSdk: 24}
//	    finalize: {compileSdk: 35}
//	    dependencies:
//	      - coordinate: androidx.appcompat:appcompat:1.6.1
//	        dependencies:
//	          - coordinate: androidx.core:core:1.9.0
//	  - name: plugin_y
//
// An entry named like the root describes the root module itself. A module
// whose capability is omitted or "none" never attaches an extension, so it is
// never overlaid and fails any mandatory ordering edge that names it.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/danieljhkim/modlay/internal/graph"
	"github.com/danieljhkim/modlay/internal/policy"
)

// ErrInvalidManifest indicates a malformed manifest.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest is a decoded module manifest.
type Manifest struct {
	Root    string       `yaml:"root"`
	Modules []ModuleSpec `yaml:"modules"`
}

// ModuleSpec describes one module.
type ModuleSpec struct {
	Name         string           `yaml:"name"`
	Parent       string           `yaml:"parent"`
	Capability   string           `yaml:"capability"`
	Defaults     AttributeSpec    `yaml:"defaults"`
	Finalize     AttributeSpec    `yaml:"finalize"`
	Dependencies []DependencySpec `yaml:"dependencies"`

	kind graph.Kind
}

// AttributeSpec holds capability attribute values; nil fields are left alone.
type AttributeSpec struct {
	CompileSDK *int   `yaml:"compileSdk"`
	TargetSDK  *int   `yaml:"targetSdk"`
	MinSDK     *int   `yaml:"minSdk"`
	OutputDir  string `yaml:"outputDir"`
}

// DependencySpec is a declared library dependency with its own dependencies.
type DependencySpec struct {
	Coordinate   string           `yaml:"coordinate"`
	Dependencies []DependencySpec `yaml:"dependencies"`
}

// Decode parses and validates a manifest.
func Decode(data []byte) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: manifest is empty", ErrInvalidManifest)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// FileReader reads manifest files.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// Load reads and decodes the manifest at path.
func Load(fs FileReader, path string) (*Manifest, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Validate checks names and capabilities and resolves each capability kind.
func (m *Manifest) Validate() error {
	if m.Root == "" {
		return fmt.Errorf("%w: root is required", ErrInvalidManifest)
	}
	seen := map[string]bool{}
	for i := range m.Modules {
		spec := &m.Modules[i]
		if spec.Name == "" {
			return fmt.Errorf("%w: module %d has no name", ErrInvalidManifest, i+1)
		}
		if seen[spec.Name] {
			return fmt.Errorf("%w: module %s is declared twice", ErrInvalidManifest, spec.Name)
		}
		seen[spec.Name] = true
		if spec.Name == m.Root && spec.Parent != "" {
			return fmt.Errorf("%w: root module %s cannot have a parent", ErrInvalidManifest, spec.Name)
		}

		kind, err := graph.ParseKind(spec.Capability)
		if err != nil {
			return fmt.Errorf("%w: module %s: %v", ErrInvalidManifest, spec.Name, err)
		}
		spec.kind = kind

		for _, d := range spec.Dependencies {
			if err := validateDependency(spec.Name, d); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateDependency(module string, d DependencySpec) error {
	if _, _, err := policy.ParseCoordinate(d.Coordinate); err != nil {
		return fmt.Errorf("%w: module %s: %v", ErrInvalidManifest, module, err)
	}
	for _, child := range d.Dependencies {
		if err := validateDependency(module, child); err != nil {
			return err
		}
	}
	return nil
}

// Spec returns the entry of the named module.
func (m *Manifest) Spec(name string) (ModuleSpec, bool) {
	for _, spec := range m.Modules {
		if spec.Name == name {
			return spec, true
		}
	}
	return ModuleSpec{}, false
}

// Kind returns the resolved capability kind.
func (s ModuleSpec) Kind() graph.Kind {
	return s.kind
}

// HasCapability reports whether the module's plugin attaches an extension.
// "none" is the same as leaving the capability out.
func (s ModuleSpec) HasCapability() bool {
	return s.kind != graph.KindNone
}

// BuildGraph creates the module graph. Modules may be listed in any order;
// a parent that is never declared is an error.
func (m *Manifest) BuildGraph() (*graph.Graph, error) {
	g := graph.New(m.Root)

	pending := make([]ModuleSpec, 0, len(m.Modules))
	for _, spec := range m.Modules {
		if spec.Name != m.Root {
			pending = append(pending, spec)
		}
	}

	for len(pending) > 0 {
		var next []ModuleSpec
		for _, spec := range pending {
			parent := spec.Parent
			if parent == m.Root {
				parent = ""
			}
			if parent != "" {
				if _, ok := g.Module(parent); !ok {
					next = append(next, spec)
					continue
				}
			}
			if _, err := g.AddModule(spec.Name, parent); err != nil {
				return nil, fmt.Errorf("failed to add module %s: %w", spec.Name, err)
			}
		}
		if len(next) == len(pending) {
			return nil, fmt.Errorf("%w: module %s has unknown parent %s", ErrInvalidManifest, next[0].Name, next[0].Parent)
		}
		pending = next
	}
	return g, nil
}

// DeclaredDependencies converts the module's dependency tree for resolution.
func (s ModuleSpec) DeclaredDependencies() []policy.Dependency {
	out := make([]policy.Dependency, 0, len(s.Dependencies))
	for _, d := range s.Dependencies {
		out = append(out, toDependency(d))
	}
	return out
}

func toDependency(d DependencySpec) policy.Dependency {
	c, v, _ := policy.ParseCoordinate(d.Coordinate)
	dep := policy.Dependency{Coordinate: c, Version: v}
	for _, child := range d.Dependencies {
		dep.Dependencies = append(dep.Dependencies, toDependency(child))
	}
	return dep
}

func (a AttributeSpec) apply(dst *graph.Attributes) {
	if a.CompileSDK != nil {
		dst.CompileSDK = *a.CompileSDK
	}
	if a.TargetSDK != nil {
		dst.TargetSDK = *a.TargetSDK
	}
	if a.MinSDK != nil {
		dst.MinSDK = *a.MinSDK
	}
	if a.OutputDir != "" {
		dst.OutputDir = a.OutputDir
	}
}
