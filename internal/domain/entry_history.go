package domain

import "time"

// EntryHistory is an immutable audit record of a waiting-list transition.
type EntryHistory struct {
	ID        string
	EntryID   string
	EventID   string
	UserID    string
	OldStatus *EntryStatus
	NewStatus EntryStatus
	Reason    string
	Details   map[string]any
	CreatedAt time.Time
}
