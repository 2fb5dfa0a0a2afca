package tools

// ToolSpec describes a tool for LLM function calling.
type ToolSpec struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Parameters  *ParamSchema `json:"parameters,omitempty"`
}

// ParamSchema defines the JSON Schema for tool parameters.
type ParamSchema struct {
	Type       string                `json:"type"`
	Properties map[string]*ParamProp `json:"properties,omitempty"`
	Required   []string              `json:"required,omitempty"`
}

// ParamProp defines a single parameter property.
type ParamProp struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}
