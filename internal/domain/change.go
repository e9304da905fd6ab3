package domain

import "encoding/json"

type ChangeOp string

const (
	ChangeInsert ChangeOp = "INSERT"
	ChangeUpdate ChangeOp = "UPDATE"
	ChangeDelete ChangeOp = "DELETE"
)

// ChangeEvent is a row-level change notification from the realtime channel.
type ChangeEvent struct {
	Table string          `json:"table"`
	Op    ChangeOp        `json:"op"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
}

// ChangeFilter selects events of one table whose Column value is one of Values.
// An empty Column matches every row of the table.
type ChangeFilter struct {
	Table  string
	Column string
	Values []string
}
