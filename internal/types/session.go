package types

import "time"

type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusIdle     SessionStatus = "idle"
	SessionStatusEnded    SessionStatus = "ended"
	SessionStatusOrphaned SessionStatus = "orphaned"
)

type Session struct {
	ID        string        `json:"id"`
	Title     string        `json:"title,omitempty"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt *time.Time    `json:"updated_at,omitempty"`
	LastSeq   int64         `json:"last_seq,omitempty"`
}
