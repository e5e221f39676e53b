package snippets

import "fmt"

// DefaultNamespaceID identifies the namespace that can never be deleted.
const DefaultNamespaceID = "default"

// Namespace groups snippets.
type Namespace struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	CreatedAt Millis `json:"createdAt" yaml:"createdAt"`
	IsDefault bool   `json:"isDefault" yaml:"isDefault"`
}

// DefaultNamespace returns the namespace seeded into every empty store.
func DefaultNamespace() Namespace {
	return Namespace{
		ID:        DefaultNamespaceID,
		Name:      "Default",
		CreatedAt: Now(),
		IsDefault: true,
	}
}

// Validate checks the fields the store requires.
func (n *Namespace) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("id is required")
	}
	if n.Name == "" {
		return fmt.Errorf("name is required")
	}
	if n.CreatedAt < 0 {
		return fmt.Errorf("createdAt must not be negative")
	}
	return nil
}

// Filename returns the canonical filename for this namespace: {id}.json
func (n *Namespace) Filename() string {
	return n.ID + ".json"
}
