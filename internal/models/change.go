package models

// Tree change actions.
const (
	ChangeCreate = "create"
	ChangeMove   = "move"
	ChangeDelete = "delete"
)

// TreeChange is one structural mutation of an event's category forest.
// ParentID is the parent after the change, PreviousParentID the parent
// before it. Affected counts the categories removed by a delete and is 1
// otherwise.
type TreeChange struct {
	ID               int64  `json:"id" db:"id"`
	EventID          int64  `json:"event_id" db:"event_id"`
	CategoryID       int64  `json:"category_id" db:"category_id"`
	Action           string `json:"action" db:"action"`
	ParentID         *int64 `json:"parent_id" db:"parent_id"`
	PreviousParentID *int64 `json:"previous_parent_id" db:"previous_parent_id"`
	Affected         int64  `json:"affected" db:"affected"`
}
