package matrix

import (
	"github.com/sells-group/accessviz/internal/cellid"
)

// Catalog is an in-memory identifier -> file map built by Index.Build. It
// answers Find without touching the file system.
type Catalog struct {
	files      map[cellid.ID][]string
	unreadable map[cellid.ID][]Skipped // failed the readability probe at build time
	skipped    []Skipped
	scanned    int
}

// Find returns the same partition contract as Index.Find.
func (c *Catalog) Find(ids []cellid.ID) *Result {
	requested := dedupe(ids)
	hits := make(map[cellid.ID][]string, len(requested))
	skipped := append([]Skipped(nil), c.skipped...)
	for _, id := range requested {
		if paths, ok := c.files[id]; ok {
			hits[id] = paths
		}
		skipped = append(skipped, c.unreadable[id]...)
	}
	return assemble(requested, hits, skipped, c.scanned)
}

// Len returns the number of distinct identifiers in the catalog.
func (c *Catalog) Len() int { return len(c.files) }

// IDs returns all cataloged identifiers in order.
func (c *Catalog) IDs() []cellid.ID {
	out := make([]cellid.ID, 0, len(c.files))
	for id := range c.files {
		out = append(out, id)
	}
	cellid.Sort(out)
	return out
}
