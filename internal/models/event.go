// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

// Event is a top-level owner of a category forest. Events are immutable once
// created.
type Event struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
