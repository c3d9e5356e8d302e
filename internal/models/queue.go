package models

import (
	"encoding/json"
	"time"
)

// QueuedWrite is a mutation awaiting remote commit, held durably until the
// flush loop delivers it or it exceeds its retry cap.
type QueuedWrite struct {
	ID         string          `json:"id"`
	Seq        uint64          `json:"seq"`
	Collection string          `json:"collection"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	Attempts   int             `json:"attempts"`
	Dead       bool            `json:"dead"`
	LastError  string          `json:"lastError,omitempty"`
}
