// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

// Category is a labeled node in an event's category forest.
// A nil ParentID marks a root. EventID is fixed at creation.
type Category struct {
	ID       int64  `json:"id" db:"id"`
	Label    string `json:"label" db:"label"`
	ParentID *int64 `json:"parent_id" db:"parent_id"`
	EventID  int64  `json:"event_id" db:"event_id"`
}

// IsRoot reports whether the category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// TreeEntry is a category annotated with its depth below the traversal root.
// Roots have depth 0.
type TreeEntry struct {
	Category
	Depth int `json:"depth" db:"depth"`
}
