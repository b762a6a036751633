package domain

import "encoding/json"

// FieldType declares a field's cardinality in its schema.
type FieldType string

const (
	FieldScalar FieldType = "scalar"
	FieldArray  FieldType = "array"
)

// FieldDefinition is declarative schema data; the engine never mutates it.
type FieldDefinition struct {
	FieldID  string    `json:"field_id"`
	Label    string    `json:"label,omitempty"`
	Prompt   string    `json:"prompt"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
}

// FieldValue holds an extracted value: nil, a single string, or a list of
// distinct strings. Exactly one of Scalar/Values is set when not null.
type FieldValue struct {
	Scalar string
	Values []string
	Null   bool
}

func NullValue() FieldValue            { return FieldValue{Null: true} }
func ScalarValue(s string) FieldValue  { return FieldValue{Scalar: s} }
func ArrayValue(v []string) FieldValue { return FieldValue{Values: v} }

func (v FieldValue) IsArray() bool { return !v.Null && v.Values != nil }

// AsAny renders the value for JSON transport: nil, string, or []string.
func (v FieldValue) AsAny() any {
	switch {
	case v.Null:
		return nil
	case v.Values != nil:
		return v.Values
	default:
		return v.Scalar
	}
}

// RawExtraction is the model's answer before engine-side normalization.
type RawExtraction struct {
	Value      FieldValue
	Confidence float64
	Reasoning  string
}

// FieldExtraction is the result of one extraction call. The caller decides
// whether and how to persist it.
type FieldExtraction struct {
	FieldID    string     `json:"field_id"`
	Value      FieldValue `json:"-"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning,omitempty"`
	Sources    []Source   `json:"sources,omitempty"`
}

func (e FieldExtraction) MarshalJSON() ([]byte, error) {
	type alias FieldExtraction
	return json.Marshal(struct {
		alias
		Value any `json:"value"`
	}{alias(e), e.Value.AsAny()})
}
