package revision

type relationKind int

const (
	relationNone relationKind = iota
	relationOne
	relationMany
)

// Relation is the result of resolving a followed relation name on an entity:
// absent, a single related entity, or a collection. Resolving explicitly
// through this tagged result keeps the follower free of runtime type
// inspection.
type Relation struct {
	kind relationKind
	one  Entity
	many []Entity
}

// NoRelation reports an absent relation. A relation whose target no longer
// exists (deleted concurrently) should also resolve to NoRelation; the
// follower treats that branch as exhausted.
func NoRelation() Relation {
	return Relation{kind: relationNone}
}

// OneRelation reports a single related entity. A nil entity collapses to
// NoRelation.
func OneRelation(e Entity) Relation {
	if e == nil {
		return Relation{kind: relationNone}
	}
	return Relation{kind: relationOne, one: e}
}

// ManyRelation reports a collection of related entities.
func ManyRelation(entities ...Entity) Relation {
	return Relation{kind: relationMany, many: entities}
}

// Entities flattens the relation into a slice, empty for NoRelation.
func (r Relation) Entities() []Entity {
	switch r.kind {
	case relationOne:
		return []Entity{r.one}
	case relationMany:
		return r.many
	default:
		return nil
	}
}

// Related is implemented by entities whose adapters declare followed
// relations. Relation resolves a declared name; returning an error marks the
// adapter configuration as broken and surfaces immediately.
type Related interface {
	Entity
	Relation(name string) (Relation, error)
}
