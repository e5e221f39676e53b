// Package snippets defines the snippet manager's persisted entities and the
// on-disk workspace they are edited in.
//
// # Entities
//
// A Snippet is a titled piece of code in a language, grouped by category and
// optionally placed in a Namespace. Every database has exactly one default
// namespace ("default"); snippets whose namespace is deleted move there.
//
// State is the full set of namespaces and snippets. It is the snapshot the
// write-back coordinator persists: always complete, never a diff.
//
// # Timestamps
//
// createdAt and updatedAt are Unix milliseconds. Input accepts either an
// integer or an ISO-8601 string, with or without a trailing "Z":
//
//	{"createdAt": 1736494589000}
//	{"createdAt": "2025-01-10T07:36:29Z"}
//
// # Workspace layout
//
//	<root>/namespaces/{id}.json|.yaml|.yml
//	<root>/snippets/{id}.json|.yaml|.yml
//
// A file that omits "id" takes it from its file name. Invalid files are
// skipped with a warning so one bad edit cannot block persistence of the rest.
package snippets
