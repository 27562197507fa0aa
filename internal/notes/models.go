// Package notes is the demo tracked domain: a small note-keeping service
// whose every mutation is recorded through revision scopes.
package notes

// Note is a versioned document. It implements revision.Entity, so saves and
// deletes captured inside a scope end up in the revision history.
type Note struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (n *Note) EntityKind() string { return "notes.note" }
func (n *Note) EntityID() string   { return n.ID }
