package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// Document is one policy source as written by the user.
//
// YAML:
//
//	pins:
//	  "androidx.core:core": "1.12.0"
//	attributes: {compile: 36, target: 36, minimum: 21}
//	output: {base: ../build}
//	ordering:
//	  - {before: app, after: "*"}
//
// HCL:
//
//	pins = { "androidx.core:core" = "1.12.0" }
//	attributes {
//	  compile = 36
//	}
//	output {
//	  base = "${env.BUILD_ROOT}/build"
//	}
//	order {
//	  before = "app"
//	  after  = "*"
//	}
type Document struct {
	Source     string            `yaml:"-"`
	Pins       map[string]string `yaml:"pins" hcl:"pins,optional"`
	Attributes *AttributeDoc     `yaml:"attributes" hcl:"attributes,block"`
	Output     *OutputDoc        `yaml:"output" hcl:"output,block"`
	Ordering   []EdgeDoc         `yaml:"ordering" hcl:"order,block"`
}

// AttributeDoc holds overlay attributes; nil fields are not set by the source.
type AttributeDoc struct {
	Compile *int `yaml:"compile" hcl:"compile,optional"`
	Target  *int `yaml:"target" hcl:"target,optional"`
	Minimum *int `yaml:"minimum" hcl:"minimum,optional"`
}

// OutputDoc holds the output relocation base.
type OutputDoc struct {
	Base string `yaml:"base" hcl:"base"`
}

// EdgeDoc is one ordering constraint.
type EdgeDoc struct {
	Before    string `yaml:"before" hcl:"before"`
	After     string `yaml:"after" hcl:"after"`
	Mandatory bool   `yaml:"mandatory" hcl:"mandatory,optional"`
}

// Decode parses a policy source. The format is chosen by the file extension:
// .yaml/.yml or .hcl. env is exposed to HCL expressions as env.<NAME>.
func Decode(name string, data []byte, env map[string]string) (Document, error) {
	var doc Document
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return Document{}, fmt.Errorf("%w: %s: %v", ErrInvalidPolicy, name, err)
		}
	case ".hcl":
		if err := hclsimple.Decode(name, data, evalContext(env), &doc); err != nil {
			return Document{}, fmt.Errorf("%w: %s: %v", ErrInvalidPolicy, name, err)
		}
	default:
		return Document{}, fmt.Errorf("%w: %s: unsupported policy format (want .yaml, .yml or .hcl)", ErrInvalidPolicy, name)
	}
	doc.Source = name
	return doc, nil
}

func evalContext(env map[string]string) *hcl.EvalContext {
	envVal := cty.EmptyObjectVal
	if len(env) > 0 {
		vars := make(map[string]cty.Value, len(env))
		for k, v := range env {
			vars[k] = cty.StringVal(v)
		}
		envVal = cty.ObjectVal(vars)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": envVal},
	}
}

// FileReader reads policy files.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// Load reads, decodes and merges the given policy files in order.
func Load(fs FileReader, env map[string]string, paths ...string) (*Set, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no policy files given", ErrInvalidPolicy)
	}
	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		data, err := fs.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy %s: %w", p, err)
		}
		doc, err := Decode(p, data, env)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return Build(docs...)
}

// Default returns the built-in policy: the androidx pins and the platform
// overlay {compile: 36, target: 36, minimum: 21}.
func Default() *Set {
	compile, target, minimum := 36, 36, 21
	s, err := Build(Document{
		Source: "builtin",
		Pins: map[string]string{
			"androidx.core:core":             "1.12.0",
			"androidx.core:core-ktx":         "1.12.0",
			"androidx.annotation:annotation": "1.8.0",
		},
		Attributes: &AttributeDoc{Compile: &compile, Target: &target, Minimum: &minimum},
	})
	if err != nil {
		panic(err)
	}
	return s
}
