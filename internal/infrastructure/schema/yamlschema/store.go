// Package yamlschema loads declarative field schemas from YAML files, one
// file per schema type.
package yamlschema

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

type schemaFile struct {
	SchemaType string        `yaml:"schema_type"`
	Sections   []sectionSpec `yaml:"sections"`
}

type sectionSpec struct {
	ID     string      `yaml:"id"`
	Label  string      `yaml:"label"`
	Fields []fieldSpec `yaml:"fields"`
}

type fieldSpec struct {
	ID       string   `yaml:"id"`
	Label    string   `yaml:"label"`
	Prompt   string   `yaml:"prompt"`
	Type     string   `yaml:"type"`
	Required bool     `yaml:"required"`
	Subkeys  []string `yaml:"subkeys"`
}

// Store reads {dir}/{schema_type}.yaml on first use and caches the flattened
// field registry per type.
type Store struct {
	dir string

	mu    sync.Mutex
	cache map[string][]domain.FieldDefinition
}

func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		cache: make(map[string][]domain.FieldDefinition),
	}
}

func (s *Store) GetField(schemaType, fieldID string) (*domain.FieldDefinition, error) {
	fields, err := s.fields(schemaType)
	if err != nil {
		return nil, err
	}
	for i := range fields {
		if fields[i].FieldID == fieldID {
			f := fields[i]
			return &f, nil
		}
	}
	return nil, domain.WrapError(domain.ErrInvalidInput, "schema lookup",
		fmt.Errorf("unknown field id %q in schema %q", fieldID, schemaType))
}

func (s *Store) ListFields(schemaType string) ([]domain.FieldDefinition, error) {
	fields, err := s.fields(schemaType)
	if err != nil {
		return nil, err
	}
	out := make([]domain.FieldDefinition, len(fields))
	copy(out, fields)
	return out, nil
}

func (s *Store) fields(schemaType string) ([]domain.FieldDefinition, error) {
	if schemaType == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "schema lookup",
			fmt.Errorf("schema type is required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if fields, ok := s.cache[schemaType]; ok {
		return fields, nil
	}

	path := filepath.Join(s.dir, schemaType+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.WrapError(domain.ErrInvalidInput, "schema lookup",
				fmt.Errorf("no schema for type %q", schemaType))
		}
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}

	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}

	fields := flattenFields(file)
	s.cache[schemaType] = fields
	return fields, nil
}

// flattenFields produces the field registry: one entry per field keyed as
// section.field, plus one per declared subkey as section.field.subkey.
func flattenFields(file schemaFile) []domain.FieldDefinition {
	var out []domain.FieldDefinition
	for _, sec := range file.Sections {
		for _, f := range sec.Fields {
			baseID := sec.ID + "." + f.ID
			out = append(out, domain.FieldDefinition{
				FieldID:  baseID,
				Label:    f.Label,
				Prompt:   fieldPrompt(f, baseID),
				Type:     fieldType(f.Type),
				Required: f.Required,
			})

			for _, sub := range f.Subkeys {
				subID := baseID + "." + sub
				out = append(out, domain.FieldDefinition{
					FieldID:  subID,
					Label:    f.Label + " -> " + sub,
					Prompt:   fmt.Sprintf("Provide the value of '%s' for '%s'", sub, labelOr(f, baseID)),
					Type:     domain.FieldScalar,
					Required: f.Required,
				})
			}
		}
	}
	return out
}

func fieldPrompt(f fieldSpec, baseID string) string {
	if f.Prompt != "" {
		return f.Prompt
	}
	return fmt.Sprintf("Provide the value of '%s'", labelOr(f, baseID))
}

func labelOr(f fieldSpec, fallback string) string {
	if f.Label != "" {
		return f.Label
	}
	return fallback
}

func fieldType(raw string) domain.FieldType {
	if raw == string(domain.FieldArray) {
		return domain.FieldArray
	}
	return domain.FieldScalar
}
