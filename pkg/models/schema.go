package models

// JSONSchema is a minimal JSON Schema document used to sanity-check raw
// template documents before they are decoded into typed structs. It covers the
// subset of draft-07 the template schema needs.
type JSONSchema struct {
	Type        string               `json:"type"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Required    []string             `json:"required,omitempty"`
	Title       string               `json:"title,omitempty"`
	Description string               `json:"description,omitempty"`
}

// Property represents a JSON Schema property.
type Property struct {
	Type        string               `json:"type"`
	Description string               `json:"description,omitempty"`
	Enum        []any                `json:"enum,omitempty"`
	Default     any                  `json:"default,omitempty"`
	Format      string               `json:"format,omitempty"`
	MinLength   *int                 `json:"minLength,omitempty"`
	MaxLength   *int                 `json:"maxLength,omitempty"`
	MinItems    *int                 `json:"minItems,omitempty"`
	Pattern     string               `json:"pattern,omitempty"`
	Items       *Property            `json:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Required    []string             `json:"required,omitempty"`
}

// TemplateDocumentSchema returns the JSON Schema every raw workflow template
// document must satisfy before strict decoding. Closed-enum membership and
// graph invariants are checked later by the structural validator; this layer
// only rejects documents whose shape is wrong.
func TemplateDocumentSchema() *JSONSchema {
	return &JSONSchema{
		Type:  "object",
		Title: "Workflow Template",
		Required: []string{
			"id", "name", "category", "version", "states", "transitions",
		},
		Properties: map[string]*Property{
			"id":          {Type: "string", MinLength: intPtr(2)},
			"name":        {Type: "string", MinLength: intPtr(3)},
			"description": {Type: "string"},
			"category": {
				Type: "string",
				Enum: []any{
					string(CategoryEducational),
					string(CategoryCorporate),
					string(CategoryResearch),
				},
			},
			"version": {Type: "string", Pattern: `^\d+\.\d+\.\d+$`},
			"states": {
				Type:     "array",
				MinItems: intPtr(2),
				Items:    stateSchema(),
			},
			"transitions": {
				Type:     "array",
				MinItems: intPtr(1),
				Items:    transitionSchema(),
			},
			"default_permissions": {Type: "object"},
			"metadata":            {Type: "object"},
		},
	}
}

func stateSchema() *Property {
	return &Property{
		Type:     "object",
		Required: []string{"id", "state_type"},
		Properties: map[string]*Property{
			"id":          {Type: "string", MinLength: intPtr(2)},
			"title":       {Type: "string"},
			"description": {Type: "string"},
			"state_type":  {Type: "string"},
			"permissions": {
				Type: "array",
				Items: &Property{
					Type:     "object",
					Required: []string{"role", "actions"},
					Properties: map[string]*Property{
						"role":    {Type: "string"},
						"actions": {Type: "array", Items: &Property{Type: "string"}},
					},
				},
			},
			"is_initial":  {Type: "boolean"},
			"is_final":    {Type: "boolean"},
			"ui_metadata": {Type: "object"},
		},
	}
}

func transitionSchema() *Property {
	return &Property{
		Type:     "object",
		Required: []string{"id", "from_state", "to_state", "required_role"},
		Properties: map[string]*Property{
			"id":            {Type: "string"},
			"title":         {Type: "string"},
			"from_state":    {Type: "string"},
			"to_state":      {Type: "string"},
			"required_role": {Type: "string"},
			"conditions": {
				Type: "object",
				Properties: map[string]*Property{
					"require_comments":   {Type: "boolean"},
					"min_content_length": {Type: "integer"},
				},
			},
		},
	}
}

func intPtr(v int) *int {
	return &v
}
