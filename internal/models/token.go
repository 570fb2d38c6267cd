package models

import (
	"time"
)

// SessionToken is an API token bound to a principal.
type SessionToken struct {
	Token           string    `json:"token"`
	UserID          string    `json:"user_id"`
	Role            Role      `json:"role"`
	RequestCount    int       `json:"request_count"`
	LastRequestTime time.Time `json:"last_request_dttm_utc"`
	CreatedTime     time.Time `json:"created_dttm_utc"`
}

func (t *SessionToken) Principal() Principal {
	return Principal{ID: t.UserID, Role: t.Role}
}
