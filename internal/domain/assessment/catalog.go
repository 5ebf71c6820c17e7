package assessment

import "sort"

// ageKey identifies a level by its age pair.
type ageKey struct {
	year  int
	month int
}

// Catalog is an immutable, indexed snapshot of the level catalogue. Queries
// that touch many placements load it once instead of resolving levels per row.
type Catalog struct {
	ordered []*Level
	byID    map[string]*Level
	byAge   map[ageKey]*Level
}

// NewCatalog indexes levels and orders them by (year, month).
func NewCatalog(levels []*Level) *Catalog {
	c := &Catalog{
		ordered: make([]*Level, 0, len(levels)),
		byID:    make(map[string]*Level, len(levels)),
		byAge:   make(map[ageKey]*Level, len(levels)),
	}
	for _, l := range levels {
		c.ordered = append(c.ordered, l)
		c.byID[l.ID] = l
		c.byAge[ageKey{l.AgeYear, l.AgeMonth}] = l
	}
	SortLevels(c.ordered)
	return c
}

// ByID returns the level with the given id.
func (c *Catalog) ByID(id string) (*Level, bool) {
	l, ok := c.byID[id]
	return l, ok
}

// ByAge returns the level for (year, month).
func (c *Catalog) ByAge(year, month int) (*Level, bool) {
	l, ok := c.byAge[ageKey{year, month}]
	return l, ok
}

// Levels returns all levels ordered by year, then month.
func (c *Catalog) Levels() []*Level {
	out := make([]*Level, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Active returns active levels in catalogue order.
func (c *Catalog) Active() []*Level {
	out := make([]*Level, 0, len(c.ordered))
	for _, l := range c.ordered {
		if l.IsActive {
			out = append(out, l)
		}
	}
	return out
}

// Len returns the number of levels.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

// SortLevels orders levels in place by (year, month).
func SortLevels(levels []*Level) {
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].Less(levels[j])
	})
}
