package snippets

import "github.com/codesnip/snipsync/internal/writeback"

// Event kinds emitted when workspace entities change.
const (
	EventSnippetCreated   writeback.EventKind = "snippet-created"
	EventSnippetUpdated   writeback.EventKind = "snippet-updated"
	EventSnippetDeleted   writeback.EventKind = "snippet-deleted"
	EventNamespaceCreated writeback.EventKind = "namespace-created"
	EventNamespaceUpdated writeback.EventKind = "namespace-updated"
	EventNamespaceDeleted writeback.EventKind = "namespace-deleted"
)

// EventKinds lists every kind this package emits, in a stable order.
func EventKinds() []writeback.EventKind {
	return []writeback.EventKind{
		EventSnippetCreated,
		EventSnippetUpdated,
		EventSnippetDeleted,
		EventNamespaceCreated,
		EventNamespaceUpdated,
		EventNamespaceDeleted,
	}
}
