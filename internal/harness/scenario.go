package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/roach88/keepsake/internal/catalog"
)

// Scenario is one scripted run against a catalog.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario shows.
	Description string `yaml:"description"`

	// Catalog is the directory of CUE declarations. Relative paths are
	// resolved against the scenario file's directory.
	Catalog string `yaml:"catalog"`

	// Codec selects the external form: url (default) or gzip.
	Codec string `yaml:"codec,omitempty"`

	// Objects are built before the first step. Entities are put into the
	// object manager in declaration order.
	Objects []ObjectDecl `yaml:"objects,omitempty"`

	Steps []Step `yaml:"steps"`
}

// ObjectDecl declares a named catalog record.
type ObjectDecl struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	Key        string            `yaml:"key,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	Op      string  `yaml:"op"`
	Memento string  `yaml:"memento,omitempty"`
	Key     string  `yaml:"key,omitempty"`
	Kind    string  `yaml:"kind,omitempty"`
	Value   *string `yaml:"value,omitempty"`
	Object  string  `yaml:"object,omitempty"`
	From    string  `yaml:"from,omitempty"`
	Text    *string `yaml:"text,omitempty"`
	Absent  bool    `yaml:"absent,omitempty"`
	Fails   bool    `yaml:"fails,omitempty"`
}

// Step operations.
const (
	OpPut      = "put"
	OpExport   = "export"
	OpParse    = "parse"
	OpBookmark = "bookmark"
	OpDelete   = "delete"
	OpExpect   = "expect"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}

	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Validate checks required fields and step shapes.
func (s *Scenario) Validate() error {
	err := validation.ValidateStruct(s,
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.Description, validation.Required),
		validation.Field(&s.Catalog, validation.Required),
		validation.Field(&s.Codec, validation.In("url", "gzip")),
		validation.Field(&s.Steps, validation.Required),
	)
	if err != nil {
		return err
	}

	if info, err := os.Stat(s.Catalog); err != nil || !info.IsDir() {
		return fmt.Errorf("catalog directory not found: %s", s.Catalog)
	}

	seen := make(map[string]bool, len(s.Objects))
	for i, obj := range s.Objects {
		if obj.Name == "" || obj.Type == "" {
			return fmt.Errorf("objects[%d]: name and type are required", i)
		}
		if seen[obj.Name] {
			return fmt.Errorf("objects[%d]: duplicate name %q", i, obj.Name)
		}
		seen[obj.Name] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.Object != "" && !seen[step.Object] {
			return fmt.Errorf("steps[%d]: undeclared object %q", i, step.Object)
		}
	}
	return nil
}

func validateStep(st Step) error {
	if st.Kind != "" && !catalog.Kind(st.Kind).Valid() {
		return fmt.Errorf("unknown kind %q", st.Kind)
	}
	hasValue := st.Value != nil

	switch st.Op {
	case OpPut:
		if st.Memento == "" || st.Key == "" {
			return fmt.Errorf("put needs memento and key")
		}
		if (st.Object != "") == hasValue {
			return fmt.Errorf("put needs exactly one of object or value")
		}
		if hasValue && st.Kind == "" {
			return fmt.Errorf("put of a value needs a kind")
		}
	case OpExport:
		if st.Memento == "" {
			return fmt.Errorf("export needs memento")
		}
	case OpParse:
		if st.Memento == "" {
			return fmt.Errorf("parse needs memento")
		}
		if (st.From != "") == (st.Text != nil) {
			return fmt.Errorf("parse needs exactly one of from or text")
		}
	case OpBookmark, OpDelete:
		if st.Object == "" {
			return fmt.Errorf("%s needs object", st.Op)
		}
	case OpExpect:
		if st.Memento == "" || st.Key == "" {
			return fmt.Errorf("expect needs memento and key")
		}
		n := 0
		for _, set := range []bool{st.Object != "", hasValue, st.Absent} {
			if set {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("expect needs exactly one of object, value or absent")
		}
		if hasValue && st.Kind == "" {
			return fmt.Errorf("expect of a value needs a kind")
		}
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
	return nil
}
