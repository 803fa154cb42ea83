package ops

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bc-dunia/sysagent/schemas"
)

// SchemaType represents JSON schema types used by operation parameters.
type SchemaType string

const (
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
	TypeBoolean SchemaType = "boolean"
)

// PropertySchema defines validation rules for a single argument.
type PropertySchema struct {
	Type        SchemaType `json:"type"`
	Description string     `json:"description,omitempty"`

	// String validation
	MinLength *int `json:"minLength,omitempty"`
	MaxLength *int `json:"maxLength,omitempty"`

	// Number validation
	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`
}

// ArgumentSchema defines the schema for validating operation arguments.
type ArgumentSchema struct {
	Type       SchemaType                `json:"type"`
	Properties map[string]PropertySchema `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

// ValidationError contains details about a single validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationResult contains all validation errors for one argument set.
type ValidationResult struct {
	Valid  bool               `json:"valid"`
	Errors []*ValidationError `json:"errors,omitempty"`
}

// Error returns a combined error message.
func (r *ValidationResult) Error() string {
	if r.Valid {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) add(field, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, &ValidationError{Field: field, Message: message})
}

// ValidateArguments checks the arguments against a schema. Arguments not
// named in the schema pass through unchecked; handlers ignore them.
func ValidateArguments(args map[string]interface{}, schema *ArgumentSchema) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if schema == nil {
		return result
	}

	for _, required := range schema.Required {
		if _, exists := args[required]; !exists {
			result.add(required, "required field is missing")
		}
	}

	for name, prop := range schema.Properties {
		value, exists := args[name]
		if !exists {
			continue
		}
		validateProperty(name, value, &prop, result)
	}

	return result
}

func validateProperty(field string, value interface{}, schema *PropertySchema, result *ValidationResult) {
	if value == nil {
		result.add(field, fmt.Sprintf("expected type %s, got null", schema.Type))
		return
	}

	switch schema.Type {
	case TypeString:
		str, ok := value.(string)
		if !ok {
			result.add(field, fmt.Sprintf("expected string, got %T", value))
			return
		}
		if schema.MinLength != nil && len(str) < *schema.MinLength {
			result.add(field, fmt.Sprintf("string length %d is less than minimum %d", len(str), *schema.MinLength))
		}
		if schema.MaxLength != nil && len(str) > *schema.MaxLength {
			result.add(field, fmt.Sprintf("string length %d exceeds maximum %d", len(str), *schema.MaxLength))
		}

	case TypeNumber, TypeInteger:
		num, ok := asFloat(value)
		if !ok {
			result.add(field, fmt.Sprintf("expected number, got %T", value))
			return
		}
		if schema.Type == TypeInteger && num != float64(int64(num)) {
			result.add(field, fmt.Sprintf("expected integer, got %v", num))
			return
		}
		if schema.Minimum != nil && num < *schema.Minimum {
			result.add(field, fmt.Sprintf("value %v is less than minimum %v", num, *schema.Minimum))
		}
		if schema.Maximum != nil && num > *schema.Maximum {
			result.add(field, fmt.Sprintf("value %v exceeds maximum %v", num, *schema.Maximum))
		}

	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			result.add(field, fmt.Sprintf("expected boolean, got %T", value))
		}
	}
}

func asFloat(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// loadSchema reads an embedded parameter schema for an operation and
// parses it for validation. Panics on a missing or malformed schema file
// since that is a build defect, not a runtime condition.
func loadSchema(operation string) (json.RawMessage, *ArgumentSchema) {
	raw, err := schemas.FS.ReadFile(operation + "/v1.json")
	if err != nil {
		panic(fmt.Sprintf("missing embedded schema for %s: %v", operation, err))
	}
	var parsed ArgumentSchema
	if err := json.Unmarshal(raw, &parsed); err != nil {
		panic(fmt.Sprintf("malformed embedded schema for %s: %v", operation, err))
	}
	return json.RawMessage(raw), &parsed
}
