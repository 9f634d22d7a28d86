package calendar

import (
	"slices"
	"sort"
)

// Collection is an ordered set of events keyed by ID and sorted by Start
// (ID breaks ties). It is not safe for concurrent use; the Synchronizer
// guards it.
type Collection struct {
	items []Event
}

func NewCollection(events ...Event) *Collection {
	c := &Collection{}
	c.Replace(events)
	return c
}

// Replace swaps the whole content. Duplicate IDs keep the last occurrence.
func (c *Collection) Replace(events []Event) {
	seen := make(map[string]int, len(events))
	items := make([]Event, 0, len(events))
	for _, e := range events {
		if i, dup := seen[e.ID]; dup {
			items[i] = e
			continue
		}
		seen[e.ID] = len(items)
		items = append(items, e)
	}
	c.items = items
	c.sort()
}

// Insert adds e, replacing a record with the same ID.
func (c *Collection) Insert(e Event) {
	if i := c.indexOf(e.ID); i >= 0 {
		c.items[i] = e
	} else {
		c.items = append(c.items, e)
	}
	c.sort()
}

// ReplaceExisting overwrites the record with e.ID. It never adds a record and
// reports whether one was replaced.
func (c *Collection) ReplaceExisting(e Event) bool {
	i := c.indexOf(e.ID)
	if i < 0 {
		return false
	}
	c.items[i] = e
	c.sort()
	return true
}

// Remove deletes the record with id and reports whether it was present.
func (c *Collection) Remove(id string) bool {
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.items = slices.Delete(c.items, i, i+1)
	return true
}

func (c *Collection) Get(id string) (Event, bool) {
	if i := c.indexOf(id); i >= 0 {
		return c.items[i], true
	}
	return Event{}, false
}

func (c *Collection) Has(id string) bool {
	return c.indexOf(id) >= 0
}

func (c *Collection) Len() int {
	return len(c.items)
}

// All returns a copy in order, never nil.
func (c *Collection) All() []Event {
	return append(make([]Event, 0, len(c.items)), c.items...)
}

func (c *Collection) Clear() {
	c.items = nil
}

func (c *Collection) indexOf(id string) int {
	return slices.IndexFunc(c.items, func(e Event) bool { return e.ID == id })
}

func (c *Collection) sort() {
	sort.SliceStable(c.items, func(i, j int) bool {
		a, b := c.items[i], c.items[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.ID < b.ID
	})
}
