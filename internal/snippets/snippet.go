package snippets

import "fmt"

// DefaultCategory is assigned to snippets saved without a category.
const DefaultCategory = "general"

// InputParameter describes one argument of a previewable snippet function.
type InputParameter struct {
	Name         string `json:"name" yaml:"name"`
	Type         string `json:"type,omitempty" yaml:"type,omitempty"`
	DefaultValue string `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Snippet is a stored piece of code.
type Snippet struct {
	ID              string           `json:"id" yaml:"id"`
	Title           string           `json:"title" yaml:"title"`
	Description     string           `json:"description" yaml:"description"`
	Code            string           `json:"code" yaml:"code"`
	Language        string           `json:"language" yaml:"language"`
	Category        string           `json:"category" yaml:"category"`
	NamespaceID     string           `json:"namespaceId,omitempty" yaml:"namespaceId,omitempty"`
	HasPreview      bool             `json:"hasPreview" yaml:"hasPreview"`
	FunctionName    string           `json:"functionName,omitempty" yaml:"functionName,omitempty"`
	InputParameters []InputParameter `json:"inputParameters,omitempty" yaml:"inputParameters,omitempty"`
	CreatedAt       Millis           `json:"createdAt" yaml:"createdAt"`
	UpdatedAt       Millis           `json:"updatedAt" yaml:"updatedAt"`
}

// Validate checks the fields the store requires.
func (s *Snippet) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(s.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(s.Title))
	}
	if s.Language == "" {
		return fmt.Errorf("language is required")
	}
	if s.CreatedAt < 0 || s.UpdatedAt < 0 {
		return fmt.Errorf("timestamps must not be negative")
	}
	return nil
}

// ApplyDefaults fills optional fields the way the backend does on insert.
func (s *Snippet) ApplyDefaults() {
	if s.Category == "" {
		s.Category = DefaultCategory
	}
	if s.CreatedAt == 0 {
		s.CreatedAt = Now()
	}
	if s.UpdatedAt == 0 {
		s.UpdatedAt = s.CreatedAt
	}
}

// Filename returns the canonical filename for this snippet: {id}.json
func (s *Snippet) Filename() string {
	return s.ID + ".json"
}
