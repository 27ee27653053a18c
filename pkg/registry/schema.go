// pkg/registry/schema.go
package registry

// ToolManifest is the on-disk form of a set of tool declarations. It lets operators reword
// tool descriptions without a rebuild.
type ToolManifest struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Tools       []ToolSpec `json:"tools"`
}

// ToolSpec is the contract declared to the completion service for one tool.
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
	Examples    []string               `json:"examples,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
}
