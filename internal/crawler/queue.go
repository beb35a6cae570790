package crawler

// entry is a topic waiting to be fetched at a given depth, together with the
// accepted topics that linked to it.
type entry struct {
	title   string
	depth   int
	parents []string
}

// frontier is one BFS level: an ordered, deduplicated set of entries.
// Levels are drained completely before the next one starts.
type frontier struct {
	depth int
	items []*entry
	index map[string]*entry
}

func newFrontier(depth int) *frontier {
	return &frontier{
		depth: depth,
		index: make(map[string]*entry),
	}
}

// push adds title to the level, or records parent on the existing entry.
// Returns true if the title was new to this level.
func (f *frontier) push(title, parent string) bool {
	if e, ok := f.index[title]; ok {
		if parent != "" && !contains(e.parents, parent) {
			e.parents = append(e.parents, parent)
		}
		return false
	}

	e := &entry{title: title, depth: f.depth}
	if parent != "" {
		e.parents = []string{parent}
	}
	f.index[title] = e
	f.items = append(f.items, e)
	return true
}

func (f *frontier) has(title string) bool {
	_, ok := f.index[title]
	return ok
}

func (f *frontier) len() int {
	return len(f.items)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
