package revision

// capture holds either a live entity reference (deferred capture) or a
// pre-serialized snapshot (eager capture). Exactly one field is set.
type capture struct {
	entity   Entity
	snapshot *Snapshot
}

type objectSet map[Key]capture

// frame is the capture state for one nesting level of a scope.
//
// manageManually and invalid are block-scoped: they belong to this nesting
// level only and reset on fork. Everything else is revision-scoped: forked
// by deep copy into child frames and copied back wholesale on a successful
// join, so an inner scope's edits become visible to the outer scope as if
// they had happened inline, while a failed inner scope leaves the outer
// state untouched.
type frame struct {
	// Block-scoped.
	manageManually bool
	invalid        bool

	// Revision-scoped.
	actor              any
	comment            string
	suppressDuplicates bool
	meta               []any
	objects            map[*Registry]objectSet
}

func newFrame(manageManually bool) *frame {
	return &frame{
		manageManually: manageManually,
		objects:        make(map[*Registry]objectSet),
	}
}

// fork produces the frame for a nested scope. Revision-scoped state is
// deep-copied so child mutations cannot reach the parent before join.
func (f *frame) fork(manageManually bool) *frame {
	objects := make(map[*Registry]objectSet, len(f.objects))
	for reg, set := range f.objects {
		copied := make(objectSet, len(set))
		for key, cap := range set {
			copied[key] = cap
		}
		objects[reg] = copied
	}
	return &frame{
		manageManually:     manageManually,
		actor:              f.actor,
		comment:            f.comment,
		suppressDuplicates: f.suppressDuplicates,
		meta:               append([]any(nil), f.meta...),
		objects:            objects,
	}
}

// join folds a closed child frame back into this one. An invalidated child
// is discarded wholesale so a failed nested scope cannot corrupt the
// ongoing revision.
func (f *frame) join(child *frame) {
	if child.invalid {
		return
	}
	f.actor = child.actor
	f.comment = child.comment
	f.suppressDuplicates = child.suppressDuplicates
	f.meta = child.meta
	f.objects = child.objects
}

func (f *frame) setFor(reg *Registry, key Key, cap capture) {
	set, ok := f.objects[reg]
	if !ok {
		set = make(objectSet)
		f.objects[reg] = set
	}
	set[key] = cap
}
