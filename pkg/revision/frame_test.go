package revision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frameEntity struct {
	id string
}

func (e *frameEntity) EntityKind() string { return "frame.entity" }
func (e *frameEntity) EntityID() string   { return e.id }

func newFrameRegistry(t *testing.T, slug string) *Registry {
	t.Helper()
	reg, err := New(slug, NewDispatcher())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	require.NoError(t, reg.Register(&frameEntity{}))
	return reg
}

func TestFrameForkDeepCopiesRevisionState(t *testing.T) {
	reg := newFrameRegistry(t, "frame-fork")

	parent := newFrame(false)
	parent.actor = "alice"
	parent.comment = "root"
	parent.suppressDuplicates = true
	parent.meta = append(parent.meta, "m1")
	parent.setFor(reg, Key{Kind: "frame.entity", ID: "1"}, capture{entity: &frameEntity{id: "1"}})

	child := parent.fork(true)

	// Block-scoped fields take the new scope's values.
	assert.True(t, child.manageManually)
	assert.False(t, child.invalid)

	// Revision-scoped fields carry over.
	assert.Equal(t, "alice", child.actor)
	assert.Equal(t, "root", child.comment)
	assert.True(t, child.suppressDuplicates)
	assert.Equal(t, []any{"m1"}, child.meta)
	assert.Len(t, child.objects[reg], 1)

	// Child mutations must not reach the parent before join.
	child.comment = "child"
	child.meta = append(child.meta, "m2")
	child.setFor(reg, Key{Kind: "frame.entity", ID: "2"}, capture{entity: &frameEntity{id: "2"}})

	assert.Equal(t, "root", parent.comment)
	assert.Equal(t, []any{"m1"}, parent.meta)
	assert.Len(t, parent.objects[reg], 1)
}

func TestFrameForkResetsInvalidated(t *testing.T) {
	parent := newFrame(false)
	parent.invalid = true

	child := parent.fork(false)
	assert.False(t, child.invalid)
}

func TestFrameJoinCopiesBackOnSuccess(t *testing.T) {
	reg := newFrameRegistry(t, "frame-join")

	parent := newFrame(false)
	parent.comment = "outer"

	child := parent.fork(false)
	child.actor = "bob"
	child.comment = "inner"
	child.setFor(reg, Key{Kind: "frame.entity", ID: "9"}, capture{entity: &frameEntity{id: "9"}})

	parent.join(child)

	assert.Equal(t, "bob", parent.actor)
	assert.Equal(t, "inner", parent.comment)
	assert.Len(t, parent.objects[reg], 1)
}

func TestFrameJoinDiscardsInvalidatedChild(t *testing.T) {
	reg := newFrameRegistry(t, "frame-join-invalid")

	parent := newFrame(false)
	parent.actor = "alice"
	parent.comment = "outer"

	child := parent.fork(false)
	child.actor = "mallory"
	child.comment = "inner"
	child.setFor(reg, Key{Kind: "frame.entity", ID: "3"}, capture{entity: &frameEntity{id: "3"}})
	child.invalid = true

	parent.join(child)

	assert.Equal(t, "alice", parent.actor)
	assert.Equal(t, "outer", parent.comment)
	assert.Empty(t, parent.objects[reg])
}
