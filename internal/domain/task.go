package domain

import (
	"encoding/json"
	"time"
)

// TaskRef names a durable task handler.
type TaskRef string

const (
	TaskExpireOffer TaskRef = "expire_offer"
)

// ScheduledTask is a persisted unit of deferred work.
type ScheduledTask struct {
	ID          string
	Ref         TaskRef
	Payload     json.RawMessage
	RunAt       time.Time
	Attempts    int
	LockedUntil *time.Time
	LastError   *string
	CreatedAt   time.Time
}

// ExpireOfferPayload is the payload of a TaskExpireOffer task.
type ExpireOfferPayload struct {
	EntryID string `json:"entry_id"`
	EventID string `json:"event_id"`
}
