package snippets

import "sort"

// State is a complete snapshot of the snippet store.
type State struct {
	Namespaces []Namespace `json:"namespaces"`
	Snippets   []Snippet   `json:"snippets"`
}

// Normalize makes s safe to persist as-is:
//   - exactly one namespace is the default, and it exists;
//   - snippets without a known namespace move to the default one;
//   - optional snippet fields get their defaults;
//   - namespace timestamps are left as they are;
//   - namespaces are ordered default first then by name, snippets newest first.
func (s *State) Normalize() {
	defaultID := ""
	for i := range s.Namespaces {
		if s.Namespaces[i].ID == DefaultNamespaceID {
			defaultID = DefaultNamespaceID
		}
	}
	if defaultID == "" {
		for i := range s.Namespaces {
			if s.Namespaces[i].IsDefault {
				defaultID = s.Namespaces[i].ID
				break
			}
		}
	}
	if defaultID == "" {
		// CreatedAt is left zero; stores stamp it on first insert.
		s.Namespaces = append(s.Namespaces, Namespace{ID: DefaultNamespaceID, Name: "Default", IsDefault: true})
		defaultID = DefaultNamespaceID
	}

	known := make(map[string]bool, len(s.Namespaces))
	for i := range s.Namespaces {
		ns := &s.Namespaces[i]
		ns.IsDefault = ns.ID == defaultID
		known[ns.ID] = true
	}

	for i := range s.Snippets {
		sn := &s.Snippets[i]
		sn.ApplyDefaults()
		if !known[sn.NamespaceID] {
			sn.NamespaceID = defaultID
		}
	}

	sort.SliceStable(s.Namespaces, func(i, j int) bool {
		a, b := s.Namespaces[i], s.Namespaces[j]
		if a.IsDefault != b.IsDefault {
			return a.IsDefault
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	sort.SliceStable(s.Snippets, func(i, j int) bool {
		a, b := s.Snippets[i], s.Snippets[j]
		if a.UpdatedAt != b.UpdatedAt {
			return a.UpdatedAt > b.UpdatedAt
		}
		return a.ID < b.ID
	})
}

// DefaultID returns the id of the default namespace, or "" if none.
func (s *State) DefaultID() string {
	for _, ns := range s.Namespaces {
		if ns.IsDefault {
			return ns.ID
		}
	}
	return ""
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	out := &State{
		Namespaces: append([]Namespace(nil), s.Namespaces...),
		Snippets:   make([]Snippet, len(s.Snippets)),
	}
	for i, sn := range s.Snippets {
		sn.InputParameters = append([]InputParameter(nil), sn.InputParameters...)
		out.Snippets[i] = sn
	}
	return out
}
