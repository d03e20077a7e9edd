// Package table holds the in-memory translation table consulted by the
// overlay engine on every filesystem call.
//
// A Table is safe for concurrent use. Readers share a read lock and never
// touch disk; Upsert and Remove take the write lock, so a reader sees an entry
// either entirely before or entirely after a mutation. Callers that persist
// entries must only apply a mutation here after the durable write succeeded.
package table

import (
	"slices"
	"strings"
	"sync"

	"github.com/dendrascience/transfs/store"
	"github.com/dendrascience/transfs/util"
)

// Table maps virtual paths to real paths.
type Table struct {
	mu sync.RWMutex

	forward map[string]string
	reverse map[string]map[string]struct{}
	// dirs[parent][child] counts the entries that live at or below
	// parent/child. Every ancestor of a mapped virtual path is a virtual
	// directory, whether or not it exists in the original tree.
	dirs map[string]map[string]int
}

// New builds a table from entries, typically the result of store.List.
func New(entries []store.Entry) *Table {
	t := &Table{
		forward: make(map[string]string, len(entries)),
		reverse: make(map[string]map[string]struct{}),
		dirs:    make(map[string]map[string]int),
	}
	for _, e := range entries {
		t.upsert(e.Original, e.Translated)
	}
	return t
}

// Resolve returns the real path mapped to virtualPath. The boolean is false
// when the path has no translation and should be served from the original
// tree.
func (t *Table) Resolve(virtualPath string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.forward[virtualPath]
	return r, ok
}

// Upsert maps virtualPath to realPath, replacing any previous mapping.
func (t *Table) Upsert(virtualPath, realPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.upsert(virtualPath, realPath)
}

// Remove drops the mapping for virtualPath and reports whether one existed.
func (t *Table) Remove(virtualPath string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	old, ok := t.forward[virtualPath]
	if !ok {
		return false
	}
	delete(t.forward, virtualPath)
	t.unlinkReverse(old, virtualPath)

	child := virtualPath
	for _, parent := range util.Ancestors(virtualPath) {
		_, name := util.ParentAndBase(child)
		if kids := t.dirs[parent]; kids != nil {
			kids[name]--
			if kids[name] <= 0 {
				delete(kids, name)
			}
			if len(kids) == 0 {
				delete(t.dirs, parent)
			}
		}
		child = parent
	}
	return true
}

// Snapshot returns every entry ordered by virtual path.
func (t *Table) Snapshot() []store.Entry {
	t.mu.RLock()
	out := make([]store.Entry, 0, len(t.forward))
	for v, r := range t.forward {
		out = append(out, store.Entry{Original: v, Translated: r})
	}
	t.mu.RUnlock()

	slices.SortFunc(out, func(a, b store.Entry) int {
		return strings.Compare(a.Original, b.Original)
	})
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.forward)
}

// Originals returns the virtual paths mapped to realPath, sorted.
func (t *Table) Originals(realPath string) []string {
	t.mu.RLock()
	set := t.reverse[realPath]
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	t.mu.RUnlock()
	slices.Sort(out)
	return out
}

// IsDir reports whether virtualPath is a directory implied by the table, that
// is, an ancestor of at least one mapped path. The root always is.
func (t *Table) IsDir(virtualPath string) bool {
	if virtualPath == "/" {
		return true
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.dirs[virtualPath]) > 0
}

// Children returns the names directly below dir that the table contributes,
// sorted: mapped files and the virtual directories leading to deeper ones.
func (t *Table) Children(dir string) []string {
	t.mu.RLock()
	kids := t.dirs[dir]
	out := make([]string, 0, len(kids))
	for name := range kids {
		out = append(out, name)
	}
	t.mu.RUnlock()
	slices.Sort(out)
	return out
}

func (t *Table) upsert(virtualPath, realPath string) {
	if old, ok := t.forward[virtualPath]; ok {
		if old == realPath {
			return
		}
		t.unlinkReverse(old, virtualPath)
	} else {
		child := virtualPath
		for _, parent := range util.Ancestors(virtualPath) {
			_, name := util.ParentAndBase(child)
			kids := t.dirs[parent]
			if kids == nil {
				kids = make(map[string]int)
				t.dirs[parent] = kids
			}
			kids[name]++
			child = parent
		}
	}
	t.forward[virtualPath] = realPath
	set := t.reverse[realPath]
	if set == nil {
		set = make(map[string]struct{})
		t.reverse[realPath] = set
	}
	set[virtualPath] = struct{}{}
}

func (t *Table) unlinkReverse(realPath, virtualPath string) {
	set := t.reverse[realPath]
	delete(set, virtualPath)
	if len(set) == 0 {
		delete(t.reverse, realPath)
	}
}
