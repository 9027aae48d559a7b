package models

import (
	"time"
)

// Progress is the game client's save state, keyed by user id.
type Progress struct {
	UserID              int64
	Level               int
	Score               int
	CompletedObjectives []string // e.g. "npc_intro", "password_found", "inbox_cleared"
	UpdatedAt           time.Time
}
